package store

// schemaDDL creates every table. Statements run one at a time and use only
// types that SQLite, PostgreSQL and MySQL all accept. Timestamps are stored
// as RFC 3339 text.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS datasets (
		dataset_id VARCHAR(64) PRIMARY KEY,
		teamspace_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		created_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_columns (
		column_id VARCHAR(64) PRIMARY KEY,
		dataset_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		kind VARCHAR(16) NOT NULL,
		ordinal INTEGER NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		UNIQUE (dataset_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS dataset_rows (
		row_id VARCHAR(64) PRIMARY KEY,
		dataset_id VARCHAR(64) NOT NULL,
		submission_id VARCHAR(64),
		created_at VARCHAR(40) NOT NULL,
		UNIQUE (dataset_id, submission_id)
	)`,
	`CREATE TABLE IF NOT EXISTS string_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		v TEXT NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS number_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		v DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS bool_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		v INTEGER NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS date_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		v VARCHAR(40) NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS richtext_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		v TEXT NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS icon_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		v VARCHAR(255) NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS point_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS line_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		coordinates TEXT NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS polygon_cells (
		row_id VARCHAR(64) NOT NULL,
		column_id VARCHAR(64) NOT NULL,
		coordinates TEXT NOT NULL,
		PRIMARY KEY (row_id, column_id)
	)`,
	`CREATE TABLE IF NOT EXISTS layers (
		layer_id VARCHAR(64) PRIMARY KEY,
		dataset_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		layer_type VARCHAR(16) NOT NULL,
		geometry_column_id VARCHAR(64) NOT NULL,
		title_column_id VARCHAR(64),
		description_column_id VARCHAR(64),
		icon_column_id VARCHAR(64),
		created_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		project_id VARCHAR(64) PRIMARY KEY,
		teamspace_id VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL,
		created_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		page_id VARCHAR(64) PRIMARY KEY,
		project_id VARCHAR(64) NOT NULL,
		ordinal INTEGER NOT NULL,
		submission_dataset_id VARCHAR(64),
		created_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		block_id VARCHAR(64) PRIMARY KEY,
		page_id VARCHAR(64) NOT NULL,
		ordinal INTEGER NOT NULL,
		kind VARCHAR(64) NOT NULL,
		content TEXT,
		column_id VARCHAR(64)
	)`,
	`CREATE TABLE IF NOT EXISTS layers_to_pages (
		page_id VARCHAR(64) NOT NULL,
		layer_id VARCHAR(64) NOT NULL,
		position INTEGER NOT NULL,
		attached_at VARCHAR(40) NOT NULL,
		PRIMARY KEY (page_id, layer_id),
		UNIQUE (page_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS data_tracks (
		track_id VARCHAR(64) PRIMARY KEY,
		page_id VARCHAR(64) NOT NULL,
		layer_id VARCHAR(64) NOT NULL,
		layer_index INTEGER NOT NULL,
		start_step INTEGER NOT NULL,
		end_step INTEGER NOT NULL,
		created_at VARCHAR(40) NOT NULL
	)`,
}
