package db

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

type mockObject struct {
	ID    int64  `db:"id"`
	Value string `db:"value"`
}

func (o mockObject) ObjectID() int64 {
	return o.ID
}

func (o *mockObject) SetObjectID(id int64) {
	o.ID = id
}

func testSetup(tb testing.TB) *DB {
	conn, err := sql.Open("sqlite3", "file:?mode=memory")
	if err != nil {
		tb.Fatal("Error:", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(
		`CREATE TABLE "mock_object" (` +
			`"id" integer PRIMARY KEY AUTOINCREMENT,` +
			`"value" text NOT NULL)`,
	); err != nil {
		tb.Fatal("Error:", err)
	}
	return NewDB(conn, SQLiteDialect)
}

func TestObjectStore(t *testing.T) {
	conn := testSetup(t)
	defer func() { _ = conn.Close() }()
	ctx := context.Background()
	store := NewObjectStore[mockObject, *mockObject]("id", "mock_object", conn)
	objects := []mockObject{
		{Value: "hello"},
		{Value: "golang"},
		{Value: "world"},
	}
	for i := range objects {
		if err := store.CreateObject(ctx, &objects[i]); err != nil {
			t.Fatal("Error:", err)
		}
		if objects[i].ID != int64(i+1) {
			t.Errorf("Expected ID %d, got %d", i+1, objects[i].ID)
		}
	}
	rows, err := store.LoadObjects(ctx)
	if err != nil {
		t.Fatal("Error:", err)
	}
	var loaded []mockObject
	for rows.Next() {
		loaded = append(loaded, rows.Row())
	}
	if err := rows.Err(); err != nil {
		t.Fatal("Error:", err)
	}
	_ = rows.Close()
	if len(loaded) != len(objects) {
		t.Fatalf("Expected %d objects, got %d", len(objects), len(loaded))
	}
	for i, object := range loaded {
		if object != objects[i] {
			t.Errorf("Expected %v, got %v", objects[i], object)
		}
	}
	object := objects[1]
	object.Value = "gopher"
	if err := store.UpdateObject(ctx, &object); err != nil {
		t.Fatal("Error:", err)
	}
	rows, err = store.FindObjects(ctx, `"value" = $1`, "gopher")
	if err != nil {
		t.Fatal("Error:", err)
	}
	if !rows.Next() {
		t.Fatal("Expected object")
	}
	if found := rows.Row(); found != object {
		t.Errorf("Expected %v, got %v", object, found)
	}
	_ = rows.Close()
	if err := store.DeleteObject(ctx, object.ID); err != nil {
		t.Fatal("Error:", err)
	}
	if err := store.DeleteObject(ctx, object.ID); err != sql.ErrNoRows {
		t.Errorf("Expected %v, got %v", sql.ErrNoRows, err)
	}
}

func TestObjectStoreTx(t *testing.T) {
	conn := testSetup(t)
	defer func() { _ = conn.Close() }()
	ctx := context.Background()
	store := NewObjectStore[mockObject, *mockObject]("id", "mock_object", conn)
	err := WrapTx(ctx, conn, func(tx *sql.Tx) error {
		ctx := WithTx(ctx, tx)
		object := mockObject{Value: "rollback"}
		if err := store.CreateObject(ctx, &object); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	if err != sql.ErrTxDone {
		t.Fatalf("Expected %v, got %v", sql.ErrTxDone, err)
	}
	rows, err := store.LoadObjects(ctx)
	if err != nil {
		t.Fatal("Error:", err)
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		t.Fatal("Expected empty store after rollback")
	}
}
