package postgres

// schemaStatements create the tables and indexes. Every statement is
// idempotent so EnsureSchema can run on every start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS organizations (
		id               UUID PRIMARY KEY,
		organization_key TEXT NOT NULL UNIQUE,
		name             TEXT NOT NULL DEFAULT '',
		industry         TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS postings (
		posting_key                TEXT PRIMARY KEY,
		title                      TEXT NOT NULL DEFAULT '',
		normalized_title           TEXT NOT NULL DEFAULT '',
		status                     TEXT NOT NULL DEFAULT '',
		industry                   TEXT,
		city                       TEXT NOT NULL DEFAULT '',
		state                      TEXT NOT NULL DEFAULT '',
		zip_code                   TEXT NOT NULL DEFAULT '',
		opening_date               TIMESTAMPTZ NOT NULL,
		closing_date               TIMESTAMPTZ,
		salary_range_text          TEXT NOT NULL DEFAULT '',
		salary_type                TEXT,
		salary_avg                 DOUBLE PRECISION NOT NULL DEFAULT 0,
		salary_min                 DOUBLE PRECISION NOT NULL DEFAULT 0,
		salary_max                 DOUBLE PRECISION NOT NULL DEFAULT 0,
		skills                     TEXT[] NOT NULL DEFAULT '{}',
		skill_weights              DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
		soft_skills                TEXT[] NOT NULL DEFAULT '{}',
		soft_skill_weights         DOUBLE PRECISION[] NOT NULL DEFAULT '{}',
		qualifications             TEXT[] NOT NULL DEFAULT '{}',
		degree_min                 TEXT,
		degree_levels              TEXT[] NOT NULL DEFAULT '{}',
		certification              TEXT,
		classification_code        TEXT NOT NULL DEFAULT '',
		classification_probability DOUBLE PRECISION NOT NULL DEFAULT 0,
		organization_id            UUID REFERENCES organizations (id) ON DELETE SET NULL,
		ingested_at                TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS postings_organization_id_idx ON postings (organization_id)`,
	`CREATE INDEX IF NOT EXISTS postings_state_idx ON postings (state)`,
	`CREATE INDEX IF NOT EXISTS postings_opening_date_idx ON postings (opening_date)`,
	`CREATE INDEX IF NOT EXISTS postings_skills_idx ON postings USING GIN (skills)`,
	`CREATE INDEX IF NOT EXISTS postings_soft_skills_idx ON postings USING GIN (soft_skills)`,
}

// postingColumns is the INSERT column list, in the order postingArgs uses.
const postingColumns = `posting_key, title, normalized_title, status, industry,
	city, state, zip_code, opening_date, closing_date,
	salary_range_text, salary_type, salary_avg, salary_min, salary_max,
	skills, skill_weights, soft_skills, soft_skill_weights,
	qualifications, degree_min, degree_levels, certification,
	classification_code, classification_probability,
	organization_id, ingested_at`

// selectPostingColumns is postingColumns with the organization reference
// read back as text, in the order scanPosting uses.
const selectPostingColumns = `posting_key, title, normalized_title, status, industry,
	city, state, zip_code, opening_date, closing_date,
	salary_range_text, salary_type, salary_avg, salary_min, salary_max,
	skills, skill_weights, soft_skills, soft_skill_weights,
	qualifications, degree_min, degree_levels, certification,
	classification_code, classification_probability,
	organization_id::text, ingested_at`

const upsertOrganizationSQL = `
INSERT INTO organizations (id, organization_key, name, industry)
VALUES ($1::text::uuid, $2, $3, $4)
ON CONFLICT (organization_key) DO UPDATE
	SET name = EXCLUDED.name, industry = EXCLUDED.industry
RETURNING id::text, (xmax = 0) AS inserted`

const upsertPostingSQL = `
INSERT INTO postings (` + postingColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26::text::uuid, $27)
ON CONFLICT (posting_key) DO UPDATE SET
	title = EXCLUDED.title,
	normalized_title = EXCLUDED.normalized_title,
	status = EXCLUDED.status,
	industry = EXCLUDED.industry,
	city = EXCLUDED.city,
	state = EXCLUDED.state,
	zip_code = EXCLUDED.zip_code,
	opening_date = EXCLUDED.opening_date,
	closing_date = EXCLUDED.closing_date,
	salary_range_text = EXCLUDED.salary_range_text,
	salary_type = EXCLUDED.salary_type,
	salary_avg = EXCLUDED.salary_avg,
	salary_min = EXCLUDED.salary_min,
	salary_max = EXCLUDED.salary_max,
	skills = EXCLUDED.skills,
	skill_weights = EXCLUDED.skill_weights,
	soft_skills = EXCLUDED.soft_skills,
	soft_skill_weights = EXCLUDED.soft_skill_weights,
	qualifications = EXCLUDED.qualifications,
	degree_min = EXCLUDED.degree_min,
	degree_levels = EXCLUDED.degree_levels,
	certification = EXCLUDED.certification,
	classification_code = EXCLUDED.classification_code,
	classification_probability = EXCLUDED.classification_probability,
	organization_id = EXCLUDED.organization_id,
	ingested_at = EXCLUDED.ingested_at`
