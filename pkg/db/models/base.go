package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ensureID assigns a client-side UUID so inserts behave the same on Postgres
// and sqlite.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (m *Material) BeforeCreate(*gorm.DB) error              { ensureID(&m.ID); return nil }
func (m *MaterialSupplierPrice) BeforeCreate(*gorm.DB) error { ensureID(&m.ID); return nil }
func (p *Project) BeforeCreate(*gorm.DB) error               { ensureID(&p.ID); return nil }
func (w *Warehouse) BeforeCreate(*gorm.DB) error             { ensureID(&w.ID); return nil }
func (r *InventoryRecord) BeforeCreate(*gorm.DB) error       { ensureID(&r.ID); return nil }
func (r *MaterialRequest) BeforeCreate(*gorm.DB) error       { ensureID(&r.ID); return nil }
func (i *MaterialRequestItem) BeforeCreate(*gorm.DB) error   { ensureID(&i.ID); return nil }
func (t *MaterialTransaction) BeforeCreate(*gorm.DB) error   { ensureID(&t.ID); return nil }
func (p *ProjectMaterial) BeforeCreate(*gorm.DB) error       { ensureID(&p.ID); return nil }
func (e *OutboxEvent) BeforeCreate(*gorm.DB) error           { ensureID(&e.ID); return nil }
func (d *OutboxDLQ) BeforeCreate(*gorm.DB) error             { ensureID(&d.ID); return nil }
func (n *Notification) BeforeCreate(*gorm.DB) error          { ensureID(&n.ID); return nil }

// All lists every persisted model, in dependency order, for sqlite test setup.
func All() []any {
	return []any{
		&Material{},
		&MaterialSupplierPrice{},
		&Warehouse{},
		&Project{},
		&InventoryRecord{},
		&MaterialRequest{},
		&MaterialRequestItem{},
		&MaterialTransaction{},
		&ProjectMaterial{},
		&OutboxEvent{},
		&OutboxDLQ{},
		&Notification{},
	}
}
