// Package database manages the pgx connection pool for the time-series store.
package database
