package database

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization},
		{"deadlock", &pq.Error{Code: "40P01"}, ErrorClassDeadlock},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"unique violation", &pq.Error{Code: "23505"}, ErrorClassPermanent},
		{"wrapped deadlock", fmt.Errorf("insert order: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(fmt.Errorf("place order: %w", ErrOrderNumberConflict)) {
		t.Error("Order number conflict should be retryable")
	}
	if !IsRetryable(&pq.Error{Code: "40001"}) {
		t.Error("Serialization failure should be retryable")
	}
	if IsRetryable(ErrProductNotFound) {
		t.Error("Missing product should not be retryable")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pq.Error{Code: "23505", Constraint: "orders_order_number_key"})

	if !IsUniqueViolation(err, "orders_order_number_key") {
		t.Error("Expected violation on orders_order_number_key")
	}
	if !IsUniqueViolation(err, "") {
		t.Error("Expected violation on any constraint")
	}
	if IsUniqueViolation(err, "users_username_key") {
		t.Error("Constraint name should be matched")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}, "") {
		t.Error("Foreign key violation is not a unique violation")
	}
}
