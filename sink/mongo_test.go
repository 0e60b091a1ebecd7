// Copyright (C) 2021 Michael J. Fromberger. All Rights Reserved.

package sink_test

import (
	"testing"

	"github.com/creachadair/jnorm"
	"github.com/creachadair/jnorm/sink"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestRecordDoc(t *testing.T) {
	e := (*jnorm.Naming)(nil).Root("r").Child("k")
	rec := jnorm.NewRecord(e, 4, 2)
	rec.Set("s", jnorm.StringValue("x"), jnorm.DuplicateError)
	rec.Set("f", jnorm.FloatValue(1.5), jnorm.DuplicateError)
	rec.Set("e", jnorm.ExactValue("1.50"), jnorm.DuplicateError)
	rec.Set("b", jnorm.BoolValue(true), jnorm.DuplicateError)

	doc := sink.RecordDoc(rec)
	var keys []string
	for _, el := range doc {
		keys = append(keys, el.Key)
	}
	if got, want := len(keys), 6; got != want {
		t.Fatalf("Document has %d fields, want %d: %v", got, want, doc)
	}
	for i, want := range []string{"r_k_id", "r_id", "s", "f", "e", "b"} {
		if keys[i] != want {
			t.Errorf("Field %d: got %q, want %q", i, keys[i], want)
		}
	}
	if v, ok := doc[0].Value.(int64); !ok || v != 4 {
		t.Errorf("ID field: got %T %v, want int64 4", doc[0].Value, doc[0].Value)
	}
	if v, ok := doc[3].Value.(float64); !ok || v != 1.5 {
		t.Errorf("Float field: got %T %v, want float64 1.5", doc[3].Value, doc[3].Value)
	}
	d, ok := doc[4].Value.(bson.Decimal128)
	if !ok {
		t.Fatalf("Exact field: got %T, want bson.Decimal128", doc[4].Value)
	}
	if got := d.String(); got != "1.50" {
		t.Errorf("Exact field: got %q, want 1.50", got)
	}
}
