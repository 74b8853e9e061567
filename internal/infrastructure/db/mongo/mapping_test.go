package mongo

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/geodonis/geodonis-web/internal/core/domain"
)

func TestUserDoc_BSONRoundTrip(t *testing.T) {
	created := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	in := &domain.User{
		ID:           7,
		Username:     "ana",
		Email:        "ana@example.com",
		PasswordHash: domain.UnusablePasswordHash,
		Status:       domain.StatusActive,
		IsSuperUser:  true,
		CreatedAt:    created,
		UpdatedAt:    created,
	}

	raw, err := bson.Marshal(userToDoc(in))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if id := bson.Raw(raw).Lookup("_id").Int64(); id != 7 {
		t.Fatalf("_id = %d, want 7", id)
	}

	var doc userDoc
	if err := bson.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out := doc.toDomain()
	if out.ID != in.ID || out.Email != in.Email || out.Username != in.Username ||
		out.PasswordHash != in.PasswordHash || out.Status != in.Status || !out.IsSuperUser {
		t.Fatalf("got %+v, want %+v", out, in)
	}
	if !out.CreatedAt.Equal(created) || !out.UpdatedAt.Equal(created) {
		t.Fatalf("timestamps = %v / %v", out.CreatedAt, out.UpdatedAt)
	}
}

func TestResetTokenDoc_ToDomain(t *testing.T) {
	exp := time.Date(2026, 2, 2, 0, 0, 0, 0, time.FixedZone("X", 3600))
	got := resetTokenDoc{ID: 3, UserID: 7, Token: "abc", ExpiresAt: exp, Used: true}.toDomain()
	if got.ID != 3 || got.UserID != 7 || got.Token != "abc" || !got.Used {
		t.Fatalf("unexpected token: %+v", got)
	}
	if got.ExpiresAt.Location() != time.UTC || !got.ExpiresAt.Equal(exp) {
		t.Fatalf("expiry = %v", got.ExpiresAt)
	}
}

func TestConsumable_RequiresUnusedAndUnexpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", -5*3600))
	f := consumable(9, now)

	if f["_id"] != int64(9) || f["used"] != false {
		t.Fatalf("filter = %v", f)
	}
	exp, ok := f["expires_at"].(bson.M)
	if !ok {
		t.Fatalf("expires_at guard missing: %v", f)
	}
	at, ok := exp["$gt"].(time.Time)
	if !ok || !at.Equal(now) || at.Location() != time.UTC {
		t.Fatalf("expires_at guard = %v", exp)
	}
}
