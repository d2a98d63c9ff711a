package mission

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS missions
(
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT     NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS waypoints
(
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    mission_id INTEGER NOT NULL REFERENCES missions (id) ON DELETE CASCADE,
    seq        INTEGER NOT NULL,
    latitude   REAL    NOT NULL,
    longitude  REAL    NOT NULL,
    UNIQUE (mission_id, seq)
);`

	insertMissionSQL = `
INSERT INTO missions (name, created_at)
VALUES (?, CURRENT_TIMESTAMP)`

	selectMissionsSQL = `
SELECT 
    m.id, 
    m.name, 
    m.created_at, 
    COUNT(w.id)
FROM missions m
         LEFT JOIN waypoints w ON w.mission_id = m.id
GROUP BY m.id
ORDER BY m.created_at, m.id`

	selectNextSeqSQL = `
SELECT COALESCE(MAX(seq) + 1, 0)
FROM waypoints
WHERE 
    mission_id = ?`

	insertWaypointSQL = `
INSERT INTO waypoints (mission_id,
                       seq,
                       latitude,
                       longitude)
VALUES (?, ?, ?, ?)`

	selectWaypointsSQL = `
SELECT 
    w.latitude, 
    w.longitude
FROM waypoints w
         JOIN missions m ON m.id = w.mission_id
WHERE 
    m.name = ?
ORDER BY w.seq`

	selectMissionIDSQL = `
SELECT id
FROM missions
WHERE 
    name = ?`
)
