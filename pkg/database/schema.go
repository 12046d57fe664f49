package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the database schema for the reporting core
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.Info("Creating database schema...")

	// Create extension for UUID generation
	if err := db.createExtensions(ctx); err != nil {
		return fmt.Errorf("failed to create extensions: %w", err)
	}

	// Create tables
	tables := []string{
		createLaboratoriesTable,
		createTestsTable,
		createInstrumentsTable,
		createMethodsTable,
		createReagentsTable,
		createUnitsTable,
		createTestConfigurationsTable,
		createCapturedValuesTable,
		createProposalsTable,
	}

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	// Create indexes
	indexes := []string{
		createLaboratoriesIndexes,
		createCatalogIndexes,
		createTestConfigurationsIndexes,
		createCapturedValuesIndexes,
		createProposalsIndexes,
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	db.logger.Info("Database schema created successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func (db *DB) createExtensions(ctx context.Context) error {
	extensions := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	}

	for _, ext := range extensions {
		if _, err := db.ExecContext(ctx, ext); err != nil {
			return fmt.Errorf("failed to create extension: %w", err)
		}
	}

	return nil
}

// SQL DDL statements for table creation
const (
	createLaboratoriesTable = `
		CREATE TABLE IF NOT EXISTS laboratories (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(200) NOT NULL,
			state SMALLINT NOT NULL DEFAULT 1,
			contact_email VARCHAR(200),
			edit_deadline_day SMALLINT NOT NULL DEFAULT 15,
			edit_override_active BOOLEAN NOT NULL DEFAULT FALSE,
			edit_override_until DATE,
			capture_cutoff_day SMALLINT NOT NULL DEFAULT 25,
			capture_override_active BOOLEAN NOT NULL DEFAULT FALSE,
			capture_override_until DATE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createTestsTable = `
		CREATE TABLE IF NOT EXISTS tests (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(200) NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createInstrumentsTable = `
		CREATE TABLE IF NOT EXISTS instruments (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(200) NOT NULL,
			description TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createMethodsTable = `
		CREATE TABLE IF NOT EXISTS methods (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(200) NOT NULL,
			description TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createReagentsTable = `
		CREATE TABLE IF NOT EXISTS reagents (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(200) NOT NULL,
			description TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createUnitsTable = `
		CREATE TABLE IF NOT EXISTS units (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			name VARCHAR(200) NOT NULL,
			description TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createTestConfigurationsTable = `
		CREATE TABLE IF NOT EXISTS test_configurations (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			laboratory_id UUID NOT NULL REFERENCES laboratories(id),
			test_id UUID NOT NULL REFERENCES tests(id),
			instrument_id UUID NOT NULL REFERENCES instruments(id),
			method_id UUID NOT NULL REFERENCES methods(id),
			reagent_id UUID NOT NULL REFERENCES reagents(id),
			unit_id UUID NOT NULL REFERENCES units(id),
			locked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (laboratory_id, test_id)
		);`

	createCapturedValuesTable = `
		CREATE TABLE IF NOT EXISTS captured_values (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			laboratory_id UUID NOT NULL REFERENCES laboratories(id),
			test_id UUID NOT NULL REFERENCES tests(id),
			period DATE NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			UNIQUE (laboratory_id, test_id, period)
		);`

	createProposalsTable = `
		CREATE TABLE IF NOT EXISTS proposals (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			kind VARCHAR(20) NOT NULL,
			value VARCHAR(200) NOT NULL,
			description TEXT,
			status SMALLINT NOT NULL DEFAULT 0,
			proposed_by VARCHAR(200) NOT NULL,
			moderation_nonce VARCHAR(64),
			resolved_by VARCHAR(200),
			resolved_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`
)

// SQL DDL statements for index creation
const (
	createLaboratoriesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_laboratories_state ON laboratories(state);`

	// Materialization matches names case-insensitively; the unique
	// indexes make the dedupe hold under concurrent approvals too.
	createCatalogIndexes = `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_instruments_name_lower ON instruments(LOWER(name));
		CREATE UNIQUE INDEX IF NOT EXISTS idx_methods_name_lower ON methods(LOWER(name));
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reagents_name_lower ON reagents(LOWER(name));
		CREATE UNIQUE INDEX IF NOT EXISTS idx_units_name_lower ON units(LOWER(name));`

	createTestConfigurationsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_test_configurations_laboratory_id ON test_configurations(laboratory_id);
		CREATE INDEX IF NOT EXISTS idx_test_configurations_test_id ON test_configurations(test_id);`

	createCapturedValuesIndexes = `
		CREATE INDEX IF NOT EXISTS idx_captured_values_laboratory_period ON captured_values(laboratory_id, period);`

	createProposalsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_proposals_status ON proposals(status);
		CREATE INDEX IF NOT EXISTS idx_proposals_kind ON proposals(kind);`
)
