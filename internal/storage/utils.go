package storage

// InitStore opens the Postgres checkpoint backend for the given scenario key.
func InitStore(connStr, key string, logger Logger) (*PostgresStore, error) {
	store, err := NewPostgresStore(connStr, key, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}
