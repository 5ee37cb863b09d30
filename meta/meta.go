// Package meta implements the generic (Key, Value, Type) metadata store that
// backs widget areas and widget instances. Payloads are serialized blobs;
// the Type column namespaces keys by the kind of record they hold.
package meta

import (
	"time"

	"github.com/uptrace/bun"
)

// Type discriminates what a meta row holds.
type Type int

const (
	// TypeWidget is a widget instance payload.
	TypeWidget Type = iota
	// TypeWidgetAreaBySystem is a widget area from the fixed system set.
	TypeWidgetAreaBySystem
	// TypeWidgetAreaByTheme is a widget area declared by a theme.
	TypeWidgetAreaByTheme
)

// Meta is a single metadata row. Key is unique across the table; creating a
// colliding key yields a duplicate-key error which callers treat as
// recoverable.
type Meta struct {
	bun.BaseModel `bun:"table:metas,alias:m"`

	ID        int64      `bun:"id,pk,autoincrement" json:"id"`
	Key       string     `bun:"key,notnull,unique" json:"key"`
	Value     string     `bun:"value,notnull" json:"value"`
	Type      Type       `bun:"type,notnull" json:"type"`
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}
