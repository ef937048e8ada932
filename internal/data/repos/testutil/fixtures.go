package testutil

import (
	"context"
	"encoding/json"
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/openfolk/contacts-backend/internal/domain"
	"github.com/openfolk/contacts-backend/internal/normalization"
)

func SeedAccount(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Account {
	tb.Helper()
	a := &types.Account{
		Name:             name,
		Type:             "com.example",
		DataSet:          "",
		UngroupedVisible: true,
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed account: %v", err)
	}
	return a
}

func SeedRawContact(tb testing.TB, ctx context.Context, tx *gorm.DB, accountID *int64, sourceID string) *types.RawContact {
	tb.Helper()
	rc := &types.RawContact{
		AccountID:       accountID,
		SourceID:        sourceID,
		AggregationMode: types.AggregationDefault,
	}
	if err := tx.WithContext(ctx).Create(rc).Error; err != nil {
		tb.Fatalf("seed raw contact: %v", err)
	}
	return rc
}

func SeedNameRow(tb testing.TB, ctx context.Context, tx *gorm.DB, rawContactID int64, display, given, family string) *types.DataRow {
	tb.Helper()
	meta, err := json.Marshal(map[string]string{
		"given_name":  given,
		"family_name": family,
	})
	if err != nil {
		tb.Fatalf("seed name row meta: %v", err)
	}
	d := &types.DataRow{
		RawContactID: rawContactID,
		Kind:         types.KindName,
		Value:        display,
		Meta:         datatypes.JSON(meta),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed name row: %v", err)
	}
	return d
}

func SeedPhoneRow(tb testing.TB, ctx context.Context, tx *gorm.DB, rawContactID int64, number string) *types.DataRow {
	tb.Helper()
	normalized := normalization.Phone(number)
	d := &types.DataRow{
		RawContactID:    rawContactID,
		Kind:            types.KindPhone,
		Value:           number,
		NormalizedValue: normalized,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed phone row: %v", err)
	}
	pl := &types.PhoneLookup{
		DataRowID:    d.ID,
		RawContactID: rawContactID,
		Normalized:   normalized,
		MinMatch:     normalization.PhoneMinMatch(normalized),
	}
	if err := tx.WithContext(ctx).Create(pl).Error; err != nil {
		tb.Fatalf("seed phone lookup: %v", err)
	}
	return d
}

func SeedEmailRow(tb testing.TB, ctx context.Context, tx *gorm.DB, rawContactID int64, address string) *types.DataRow {
	tb.Helper()
	d := &types.DataRow{
		RawContactID:    rawContactID,
		Kind:            types.KindEmail,
		Value:           address,
		NormalizedValue: normalization.Email(address),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed email row: %v", err)
	}
	return d
}

func SeedGroup(tb testing.TB, ctx context.Context, tx *gorm.DB, accountID int64, title string, visible bool) *types.Group {
	tb.Helper()
	g := &types.Group{
		AccountID: PtrInt64(accountID),
		SourceID:  title,
		Title:     title,
		Visible:   visible,
	}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed group: %v", err)
	}
	return g
}

func SeedContact(tb testing.TB, ctx context.Context, tx *gorm.DB, display string) *types.Contact {
	tb.Helper()
	c := &types.Contact{
		DisplayNamePrimary: display,
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed contact: %v", err)
	}
	return c
}

func PtrInt64(v int64) *int64 { return &v }
