package waypoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	w, err := Parse("-2.670,51.424")
	require.NoError(t, err)
	assert.Equal(t, Waypoint{Latitude: 51.424, Longitude: -2.670}, w)

	w, err = Parse(" -2.6712 , 51.4201 \n")
	require.NoError(t, err)
	assert.Equal(t, Waypoint{Latitude: 51.4201, Longitude: -2.6712}, w)
}

func TestParse_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"-2.670",
		"-2.670,51.424,10",
		"abc,51.424",
		"-2.670,north",
		"-2.670,91",
		"181,51.424",
		"NaN,51.424",
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
	}
}

func TestFilter_Sentinel(t *testing.T) {
	f := DefaultFilter()

	assert.False(t, f.Accept(Waypoint{Latitude: SentinelLatitude, Longitude: SentinelLongitude}))
	assert.False(t, f.Accept(Waypoint{Latitude: SentinelLatitude + 0.0009, Longitude: SentinelLongitude - 0.0009}))
	assert.True(t, f.Accept(Waypoint{Latitude: SentinelLatitude + 0.002, Longitude: SentinelLongitude}))
	assert.True(t, f.Accept(Waypoint{Latitude: SentinelLatitude, Longitude: SentinelLongitude + 0.002}))
	assert.True(t, f.Accept(Waypoint{Latitude: 51.424, Longitude: -2.670}))
}

func TestIntake_PreservesOrder(t *testing.T) {
	in := Intake{Queue: NewQueue(), Filter: DefaultFilter()}

	for _, s := range []string{
		"-2.670,51.424",
		"-2.67155,51.42341", // sentinel
		"-2.668,51.426",
		"-2.6716,51.4230", // within tolerance of the sentinel
		"-2.665,51.420",
	} {
		_, err := in.OfferText(s)
		require.NoError(t, err)
	}

	assert.Equal(t, []Waypoint{
		{Latitude: 51.424, Longitude: -2.670},
		{Latitude: 51.426, Longitude: -2.668},
		{Latitude: 51.420, Longitude: -2.665},
	}, in.Queue.Items())
}

func TestIntake_MalformedKeepsQueue(t *testing.T) {
	in := Intake{Queue: NewQueue(Waypoint{Latitude: 51.424, Longitude: -2.670}), Filter: DefaultFilter()}

	ok, err := in.OfferText("not a waypoint")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.Equal(t, 1, in.Queue.Len())
}

func TestQueue_FrontPop(t *testing.T) {
	q := NewQueue(
		Waypoint{Latitude: 1, Longitude: 1},
		Waypoint{Latitude: 2, Longitude: 2},
	)

	w, ok := q.Front()
	require.True(t, ok)
	assert.Equal(t, Waypoint{Latitude: 1, Longitude: 1}, w)

	w2, _ := q.Front()
	assert.Equal(t, w, w2, "Front must not consume")

	assert.Equal(t, 1, q.Pop())
	assert.Equal(t, 0, q.Pop())
	assert.Equal(t, 0, q.Pop())

	_, ok = q.Front()
	assert.False(t, ok)
}
