package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/sitestock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sitestock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sitestock-backend/pkg/errors"
)

func newTestService(t *testing.T) (Service, Repository) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func TestCreateMaterialKeepsSupplierOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateMaterial(ctx, CreateMaterialInput{
		Name:          " Cement ",
		Unit:          "bag",
		AlertQuantity: dbtest.Qty("10"),
		Suppliers: []SupplierPriceInput{
			{Name: "Holcim", Price: dbtest.Qty("5.50")},
			{Name: "Cemex", Price: dbtest.Qty("4.90")},
		},
	})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	if created.Name != "Cement" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}

	loaded, err := svc.GetMaterial(ctx, created.ID)
	if err != nil {
		t.Fatalf("get material: %v", err)
	}
	if len(loaded.Suppliers) != 2 || loaded.Suppliers[0].SupplierName != "Holcim" {
		t.Fatalf("unexpected suppliers %+v", loaded.Suppliers)
	}
	if !UnitCost(*loaded).Equal(dbtest.Qty("5.5")) {
		t.Fatalf("unit cost should come from the first supplier, got %s", UnitCost(*loaded))
	}
}

func TestCreateMaterialDuplicateNameConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	input := CreateMaterialInput{Name: "Steel", Unit: "kg"}
	if _, err := svc.CreateMaterial(ctx, input); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.CreateMaterial(ctx, input)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateMaterialValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := []CreateMaterialInput{
		{Name: "", Unit: "kg"},
		{Name: "Sand", Unit: " "},
		{Name: "Sand", Unit: "m3", AlertQuantity: dbtest.Qty("-1")},
		{Name: "Sand", Unit: "m3", Suppliers: []SupplierPriceInput{{Name: "", Price: dbtest.Qty("1")}}},
	}
	for i, input := range cases {
		if _, err := svc.CreateMaterial(context.Background(), input); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestUnitCostWithoutSuppliersIsZero(t *testing.T) {
	svc, _ := newTestService(t)
	m, err := svc.CreateMaterial(context.Background(), CreateMaterialInput{Name: "Gravel", Unit: "m3"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !UnitCost(*m).IsZero() {
		t.Fatalf("expected zero cost, got %s", UnitCost(*m))
	}
}

func TestGetMaterialsReportsMissingID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	m, err := svc.CreateMaterial(ctx, CreateMaterialInput{Name: "Rebar", Unit: "kg"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	byID, err := svc.GetMaterials(ctx, []uuid.UUID{m.ID})
	if err != nil || len(byID) != 1 {
		t.Fatalf("expected one material, got %v (%v)", byID, err)
	}

	_, err = svc.GetMaterials(ctx, []uuid.UUID{m.ID, uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoadActiveMaterialsRejectsDeactivated(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	cement := dbtest.SeedMaterial(t, conn, "Cement", dbtest.MaterialOpts{})
	retired := dbtest.SeedMaterial(t, conn, "Asbestos board", dbtest.MaterialOpts{})
	if err := conn.Model(&retired).Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := LoadActiveMaterials(ctx, repo, []uuid.UUID{cement.ID}); err != nil {
		t.Fatalf("active material: %v", err)
	}
	_, err := LoadActiveMaterials(ctx, repo, []uuid.UUID{cement.ID, retired.ID})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = LoadActiveMaterials(ctx, repo, []uuid.UUID{uuid.New()})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := LoadMaterials(ctx, repo, []uuid.UUID{retired.ID}); err != nil {
		t.Fatalf("inactive materials still load for existing demand: %v", err)
	}
}

func TestListMaterialsPaginates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"Brick", "Block", "Beam"} {
		if _, err := svc.CreateMaterial(ctx, CreateMaterialInput{Name: name, Unit: "pc"}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}

	first, err := svc.ListMaterials(ctx, ListMaterialsParams{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first.Items) != 2 || first.Cursor == "" {
		t.Fatalf("expected a full first page with cursor, got %d items cursor=%q", len(first.Items), first.Cursor)
	}

	second, err := svc.ListMaterials(ctx, ListMaterialsParams{Limit: 2, Cursor: first.Cursor})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(second.Items) != 1 || second.Cursor != "" {
		t.Fatalf("expected final page of one, got %d items cursor=%q", len(second.Items), second.Cursor)
	}

	seen := map[uuid.UUID]bool{}
	for _, m := range append(first.Items, second.Items...) {
		if seen[m.ID] {
			t.Fatalf("material %s returned twice", m.Name)
		}
		seen[m.ID] = true
	}

	filtered, err := svc.ListMaterials(ctx, ListMaterialsParams{Search: "bea"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(filtered.Items) != 1 || filtered.Items[0].Name != "Beam" {
		t.Fatalf("unexpected search result %+v", filtered.Items)
	}

	if _, err := svc.ListMaterials(ctx, ListMaterialsParams{Cursor: "%%%"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad cursor, got %v", err)
	}
}

func TestCreateWarehouseSingleMain(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Name: "Main Yard", Type: enums.WarehouseMain}); err != nil {
		t.Fatalf("create main: %v", err)
	}
	_, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Name: "Second Yard", Type: enums.WarehouseMain})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Name: "Site A", Type: enums.WarehouseProject}); err != nil {
		t.Fatalf("project warehouse: %v", err)
	}
}

func TestCreateProjectDedicatedNeedsWarehouse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateProject(ctx, CreateProjectInput{Name: "Tower", WarehouseMode: enums.ProjectWarehouseDedicated})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	missing := uuid.New()
	_, err = svc.CreateProject(ctx, CreateProjectInput{Name: "Tower", WarehouseMode: enums.ProjectWarehouseDedicated, DedicatedWarehouseID: &missing})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveWarehouse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	shared, err := svc.CreateProject(ctx, CreateProjectInput{Name: "Bridge"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := svc.ResolveWarehouse(ctx, *shared); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found without main warehouse, got %v", err)
	}

	main, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Name: "Main", Type: enums.WarehouseMain})
	if err != nil {
		t.Fatalf("create main: %v", err)
	}
	site, err := svc.CreateWarehouse(ctx, CreateWarehouseInput{Name: "Site", Type: enums.WarehouseProject})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	dedicated, err := svc.CreateProject(ctx, CreateProjectInput{Name: "Mall", WarehouseMode: enums.ProjectWarehouseDedicated, DedicatedWarehouseID: &site.ID})
	if err != nil {
		t.Fatalf("create dedicated project: %v", err)
	}

	got, err := svc.ResolveWarehouse(ctx, *shared)
	if err != nil || got.ID != main.ID {
		t.Fatalf("shared project should use main warehouse, got %v (%v)", got, err)
	}
	got, err = svc.ResolveWarehouse(ctx, *dedicated)
	if err != nil || got.ID != site.ID {
		t.Fatalf("dedicated project should use its warehouse, got %v (%v)", got, err)
	}
}
