// Package models contains the persisted entities of the click pipeline
package models

// All returns every persisted model, in foreign-key order, for schema migration
func All() []any {
	return []any{
		&Advertiser{},
		&BlockingRule{},
		&AdClick{},
		&BlockedIP{},
	}
}
