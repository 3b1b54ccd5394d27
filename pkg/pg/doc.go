// Package pg bootstraps the PostgreSQL record store: a pgx pool with retrying
// Connect, goose migrations from an fs.FS, a readiness check and helpers that
// classify driver errors.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, db.Migrations, cfg, log); err != nil {
//	    return err
//	}
//
// Stores depend on the DB interface rather than the pool so they can run
// inside a transaction. Error helpers let them tell a unique-constraint hit
// (IsDuplicateKeyError, ConstraintName) from an unreachable server
// (IsUnavailableError).
package pg
