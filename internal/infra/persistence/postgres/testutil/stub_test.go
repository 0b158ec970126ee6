package testutil

import (
	"context"
	"database/sql/driver"
	"testing"
)

func TestStubDBUpsertsAndQueriesRows(t *testing.T) {
	ctx := context.Background()
	_, conn := NewStubDB()

	if err := conn.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	upsert := "INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload"
	for _, payload := range []string{`{"a":1}`, `{"a":2}`} {
		if _, err := conn.ExecContext(ctx, upsert, []driver.NamedValue{{Value: "persons"}, {Value: []byte(payload)}}); err != nil {
			t.Fatalf("ExecContext upsert: %v", err)
		}
	}
	if len(conn.Tables["state"]) != 1 {
		t.Fatalf("expected upsert to replace row, got %v", conn.Tables["state"])
	}
	row, ok := conn.Row("state", "bucket", "persons")
	if !ok || string(row["payload"].([]byte)) != `{"a":2}` {
		t.Fatalf("unexpected stored row: %v", row)
	}

	rows, err := conn.QueryContext(ctx, "SELECT bucket, payload FROM state", nil)
	if err != nil {
		t.Fatalf("QueryContext: %v", err)
	}
	defer func() { _ = rows.Close() }()

	dest := make([]driver.Value, 2)
	if err := rows.Next(dest); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if dest[0] != "persons" {
		t.Fatalf("unexpected row values: %v", dest)
	}
}
