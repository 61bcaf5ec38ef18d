package dentists

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dentalink/clinic-platform/pkg/logging"
)

func TestListDentists(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Add(&Dentist{ID: "d1", FirstName: "Alice", LastName: "Mwangi"})
	repo.Add(&Dentist{ID: "d2", FirstName: "Brian", LastName: "Otieno"})

	handler := NewHandler(repo, logging.Default())

	req := httptest.NewRequest(http.MethodGet, "/dentists", nil)
	w := httptest.NewRecorder()
	handler.ListDentists(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Message string     `json:"message"`
		Data    []*Dentist `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Data) != 2 {
		t.Fatalf("expected 2 dentists, got %d", len(body.Data))
	}
	if body.Data[0].ID != "d1" {
		t.Errorf("expected stable order, got %s first", body.Data[0].ID)
	}
}

func TestInMemoryRepositoryLookups(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Add(&Dentist{ID: "d1", UserID: "u9"})

	if _, err := repo.GetByID(context.Background(), "missing"); err != ErrDentistNotFound {
		t.Errorf("expected ErrDentistNotFound, got %v", err)
	}

	d, err := repo.GetByUserID(context.Background(), "u9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID != "d1" {
		t.Errorf("expected d1, got %s", d.ID)
	}
}
