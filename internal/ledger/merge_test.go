package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kardexapp/kardex/internal/doc"
)

func TestMergeProducts_PreservesVariantsAndLedgers(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	primaryID, primaryVariant := addProduct(t, e, "Abrigo polar", 5)
	secondaryID, secondaryVariant := addProduct(t, e, "Collar cuero", 7)
	_, err := e.AppendMovement(ctx, secondaryVariant, MovementInput{Type: doc.MovementSale, Change: -1})
	require.NoError(t, err)

	beforeSecondaryLedger := len(s.Snapshot().Ledger(secondaryVariant))
	require.NoError(t, e.MergeProducts(ctx, primaryID, secondaryID))

	d := s.Snapshot()
	primary := d.FindProduct(primaryID)
	require.NotNil(t, primary)
	assert.Len(t, primary.Variants, 2, "variant counts add up")
	assert.Nil(t, d.FindProduct(secondaryID), "secondary product is gone")

	// Every pre-merge movement is still retrievable under its original
	// variant id - ledgers transfer by reference.
	assert.Len(t, d.Ledger(secondaryVariant), beforeSecondaryLedger)
	assert.Len(t, d.Ledger(primaryVariant), 1)

	assert.Equal(t, "product_merge", d.AuditLog[0].Type)
	assert.Empty(t, Verify(d))
}

func TestMergeProducts_DisambiguatesCollidingNames(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	// Both products use the default "Único" variant name.
	primaryID, _ := addProduct(t, e, "Abrigo polar", 5)
	secondaryID, _ := addProduct(t, e, "Collar cuero", 7)

	require.NoError(t, e.MergeProducts(ctx, primaryID, secondaryID))

	primary := s.Snapshot().FindProduct(primaryID)
	require.Len(t, primary.Variants, 2)
	assert.Equal(t, "Único", primary.Variants[0].Name)
	assert.Equal(t, "Único (Collar)", primary.Variants[1].Name,
		"colliding name gets the origin's first title word")
}

func TestMergeProducts_MissingIDIsNoop(t *testing.T) {
	e, s := setupEngine(t)
	ctx := context.Background()

	primaryID, _ := addProduct(t, e, "Abrigo polar", 5)

	require.NoError(t, e.MergeProducts(ctx, primaryID, "missing"))
	require.NoError(t, e.MergeProducts(ctx, "missing", primaryID))
	require.NoError(t, e.MergeProducts(ctx, primaryID, primaryID))

	d := s.Snapshot()
	assert.Len(t, d.FindProduct(primaryID).Variants, 1)
	// Merges against missing ids may commit an empty change or none;
	// either way no audit entry and no variant movement happens.
	for _, entry := range d.AuditLog {
		assert.NotEqual(t, "product_merge", entry.Type)
	}
}

func TestMergeProducts_PrimaryAfterSecondaryInList(t *testing.T) {
	// Removal of the secondary shifts the slice; merging into a product
	// that sits after the secondary must still work.
	e, s := setupEngine(t)
	ctx := context.Background()

	secondaryID, _ := addProduct(t, e, "Collar cuero", 7)
	primaryID, _ := addProduct(t, e, "Abrigo polar", 5)

	require.NoError(t, e.MergeProducts(ctx, primaryID, secondaryID))

	d := s.Snapshot()
	primary := d.FindProduct(primaryID)
	require.NotNil(t, primary)
	assert.Len(t, primary.Variants, 2)
	assert.Nil(t, d.FindProduct(secondaryID))
}
