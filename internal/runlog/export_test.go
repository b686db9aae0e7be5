package runlog

// BumpSchemaVersionForTest rewrites the stored schema version so tests
// can exercise the mismatch path.
func (s *Store) BumpSchemaVersionForTest(version int) error {
	_, err := s.db.Exec("UPDATE schema_version SET version = ?", version)
	return err
}
