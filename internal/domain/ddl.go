package domain

import "github.com/clusterqueue/clusterqueue/internal/store"

// CreateTableStatements returns, in dependency order, the DDL to build the
// three tables plus the pre-populated UNASSIGNED virtual node (spec §3, §6).
// Column types differ slightly by dialect: Postgres gets a native TEXT[] for
// tags and JSONB for the map-typed columns; the SQLite test backend has
// neither, so tags fall back to the same brace-literal TEXT encoding
// store.TagSet already produces, and JSON columns to plain TEXT.
func CreateTableStatements(dialect store.Dialect) []store.Statement {
	switch dialect {
	case store.Postgres:
		return []store.Statement{
			{SQL: `CREATE TABLE nodes (
				hostname TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				tags TEXT[] NOT NULL DEFAULT '{}',
				num_parallel_jobs INTEGER NOT NULL DEFAULT 1,
				last_seen TIMESTAMPTZ NOT NULL
			)`},
			{SQL: `CREATE TABLE processors (
				processor_id INTEGER NOT NULL,
				parent_node TEXT NOT NULL REFERENCES nodes(hostname),
				status TEXT NOT NULL,
				last_seen TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (processor_id, parent_node)
			)`},
			{SQL: `CREATE TABLE jobs (
				job_id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
				payload TEXT NOT NULL,
				env_variables JSONB,
				tags TEXT[],
				status TEXT NOT NULL,
				last_updated TIMESTAMPTZ NOT NULL,
				submission_time TIMESTAMPTZ NOT NULL,
				assigned_node TEXT NOT NULL REFERENCES nodes(hostname) DEFAULT '` + UnassignedHostname + `',
				assigned_node_processor INTEGER,
				result_metadata JSONB,
				metadata JSONB
			)`},
			{SQL: `INSERT INTO nodes (hostname, status, tags, num_parallel_jobs, last_seen)
				VALUES ('` + UnassignedHostname + `', '` + UnassignedHostname + `', '{virtual}', 1, now())`},
		}
	default: // store.SQLite, used by the test suite
		return []store.Statement{
			{SQL: `CREATE TABLE nodes (
				hostname TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				tags TEXT NOT NULL DEFAULT '{}',
				num_parallel_jobs INTEGER NOT NULL DEFAULT 1,
				last_seen DATETIME NOT NULL
			)`},
			{SQL: `CREATE TABLE processors (
				processor_id INTEGER NOT NULL,
				parent_node TEXT NOT NULL REFERENCES nodes(hostname),
				status TEXT NOT NULL,
				last_seen DATETIME NOT NULL,
				PRIMARY KEY (processor_id, parent_node)
			)`},
			{SQL: `CREATE TABLE jobs (
				job_id INTEGER PRIMARY KEY AUTOINCREMENT,
				payload TEXT NOT NULL,
				env_variables TEXT,
				tags TEXT,
				status TEXT NOT NULL,
				last_updated DATETIME NOT NULL,
				submission_time DATETIME NOT NULL,
				assigned_node TEXT NOT NULL REFERENCES nodes(hostname) DEFAULT '` + UnassignedHostname + `',
				assigned_node_processor INTEGER,
				result_metadata TEXT,
				metadata TEXT
			)`},
			{SQL: `INSERT INTO nodes (hostname, status, tags, num_parallel_jobs, last_seen)
				VALUES ('` + UnassignedHostname + `', '` + UnassignedHostname + `', '{virtual}', 1, CURRENT_TIMESTAMP)`},
		}
	}
}

// DropTableStatements drops all three tables, children first.
func DropTableStatements() []store.Statement {
	return []store.Statement{
		{SQL: `DROP TABLE IF EXISTS jobs`},
		{SQL: `DROP TABLE IF EXISTS processors`},
		{SQL: `DROP TABLE IF EXISTS nodes`},
	}
}
