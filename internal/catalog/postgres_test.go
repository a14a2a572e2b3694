package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestReplaceProductAllergensTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectBegin()
	mock.ExpectExec(`delete from product_allergens where product_id=\$1`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into product_allergens`).
		WithArgs("p1", "gluten").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into product_allergens`).
		WithArgs("p1", "milk").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.ReplaceProductAllergens(context.Background(), "p1", []string{"gluten", "milk"}); err != nil {
		t.Fatalf("ReplaceProductAllergens: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCreateMenuUniqueViolation(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := NewPGStore(db)

	mock.ExpectExec(`insert into menus`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err = store.CreateMenu(context.Background(), &Menu{ID: "m1", OrganizationID: "org-1", Name: "Lunch"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("unique violation: got %v, want ErrConflict", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
