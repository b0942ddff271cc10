package remote

import "context"

// TruncateForTest empties every table of a PostgresStore.
func TruncateForTest(ctx context.Context, s *PostgresStore) error {
	_, err := s.pool.Exec(ctx, "TRUNCATE tasks, owner_revisions RESTART IDENTITY")
	return err
}
