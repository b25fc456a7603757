package enums

import "fmt"

// WarehouseType distinguishes the shared main store from project site stores.
type WarehouseType string

const (
	WarehouseMain    WarehouseType = "main"
	WarehouseProject WarehouseType = "project"
)

func (w WarehouseType) IsValid() bool {
	return w == WarehouseMain || w == WarehouseProject
}

func ParseWarehouseType(value string) (WarehouseType, error) {
	candidate := WarehouseType(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid warehouse type %q", value)
	}
	return candidate, nil
}

// ProjectWarehouseMode selects which warehouse a project draws stock from.
type ProjectWarehouseMode string

const (
	ProjectWarehouseShared    ProjectWarehouseMode = "shared"
	ProjectWarehouseDedicated ProjectWarehouseMode = "dedicated"
)

func (m ProjectWarehouseMode) IsValid() bool {
	return m == ProjectWarehouseShared || m == ProjectWarehouseDedicated
}

func ParseProjectWarehouseMode(value string) (ProjectWarehouseMode, error) {
	candidate := ProjectWarehouseMode(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid project warehouse mode %q", value)
	}
	return candidate, nil
}
