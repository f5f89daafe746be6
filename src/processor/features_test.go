package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveAgeGroupBoundaries(t *testing.T) {
	dcfg := testDataConfig()
	df := testFrame(t, dcfg,
		testRow("1", "15", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "5"),
		testRow("2", "30", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "5"),
		testRow("3", "40", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "5"),
		testRow("4", "60", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "5"),
	)

	derived, err := NewFeatureDeriver(dcfg).Derive(df)
	require.NoError(t, err)

	groups := derived.Col(ColAgeGroup).Records()
	assert.Equal(t, []string{"Teen", "Young Adult", "Adult", "Senior"}, groups)
}

func TestDerivePurchaseCategoryBuckets(t *testing.T) {
	dcfg := testDataConfig()
	df := testFrame(t, dcfg,
		testRow("1", "30", "Male", "Clothing", "25", "Winter", "3.0", "No", "No", "5"),
		testRow("2", "30", "Male", "Clothing", "40", "Winter", "3.0", "No", "No", "5"),
		testRow("3", "30", "Male", "Clothing", "74", "Winter", "3.0", "No", "No", "5"),
		testRow("4", "30", "Male", "Clothing", "99", "Winter", "3.0", "No", "No", "5"),
		testRow("5", "30", "Male", "Clothing", "150", "Winter", "3.0", "No", "No", "5"),
	)

	derived, err := NewFeatureDeriver(dcfg).Derive(df)
	require.NoError(t, err)

	got := derived.Col(ColPurchaseCategory).Records()
	assert.Equal(t, []string{"Very Low", "Low", "Medium", "High", "Very High"}, got)
}

func TestDeriveDiscountOrPromoTruthTable(t *testing.T) {
	dcfg := testDataConfig()
	df := testFrame(t, dcfg,
		testRow("1", "30", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "5"),
		testRow("2", "30", "Male", "Clothing", "50", "Winter", "3.0", "Yes", "No", "5"),
		testRow("3", "30", "Male", "Clothing", "50", "Winter", "3.0", "No", "Yes", "5"),
		testRow("4", "30", "Male", "Clothing", "50", "Winter", "3.0", "Yes", "Yes", "5"),
	)

	derived, err := NewFeatureDeriver(dcfg).Derive(df)
	require.NoError(t, err)

	got := derived.Col(ColDiscountOrPromo).Records()
	assert.Equal(t, []string{"No", "Yes", "Yes", "Yes"}, got)
}

func TestDeriveRepeatCustomerThreshold(t *testing.T) {
	dcfg := testDataConfig()
	df := testFrame(t, dcfg,
		testRow("1", "30", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "9"),
		testRow("2", "30", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "10"),
		testRow("3", "30", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "25"),
	)

	derived, err := NewFeatureDeriver(dcfg).Derive(df)
	require.NoError(t, err)

	previous := derived.Col(ColPreviousPurchases).Float()
	flags := derived.Col(ColRepeatCustomer).Records()
	require.Len(t, flags, 3)
	for i, f := range flags {
		// 当且仅当历史购买次数达到阈值时标记为回头客
		assert.Equal(t, previous[i] >= dcfg.RepeatThreshold, f == "true", "row %d", i)
	}
	assert.Equal(t, []string{"false", "true", "true"}, flags)
}

func TestDeriveSeasonCategoryConcat(t *testing.T) {
	dcfg := testDataConfig()
	df := testFrame(t, dcfg,
		testRow("1", "30", "Male", "Clothing", "50", "Winter", "3.0", "No", "No", "5"),
		testRow("2", "30", "Male", "Footwear", "50", "Summer", "3.0", "No", "No", "5"),
	)

	derived, err := NewFeatureDeriver(dcfg).Derive(df)
	require.NoError(t, err)

	got := derived.Col(ColSeasonCategory).Records()
	assert.Equal(t, []string{"Winter_Clothing", "Summer_Footwear"}, got)
}

func TestDeriveIsIdempotent(t *testing.T) {
	dcfg := testDataConfig()
	df := testFrame(t, dcfg,
		testRow("1", "25", "Female", "Clothing", "40", "Spring", "4.0", "Yes", "No", "3"),
		testRow("2", "31", "Male", "Footwear", "60", "Summer", "3.0", "No", "No", "12"),
		testRow("3", "47", "Female", "Accessories", "85", "Fall", "4.5", "No", "Yes", "20"),
	)

	deriver := NewFeatureDeriver(dcfg)
	once, err := deriver.Derive(df)
	require.NoError(t, err)
	twice, err := deriver.Derive(once)
	require.NoError(t, err)

	assert.Equal(t, once.Names(), twice.Names())
	assert.Equal(t, once.Records(), twice.Records())
}

func TestBucketLabelAboveLastCut(t *testing.T) {
	cuts := []float64{20, 35, 55}
	labels := []string{"Teen", "Young Adult", "Adult", "Senior"}
	assert.Equal(t, "Senior", bucketLabel(55, cuts, labels))
	assert.Equal(t, "Senior", bucketLabel(120, cuts, labels))
	assert.Equal(t, "Teen", bucketLabel(0, cuts, labels))
	assert.Equal(t, "Young Adult", bucketLabel(20, cuts, labels))
}
