package processor

import (
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"ShoppingBehavior/src/config"
)

// FeatureDeriver 特征派生器
// 五个派生列都是原始列的纯函数，重复执行会得到完全相同的结果：
// Mutate按列名覆盖，已派生过的表再跑一遍也不会串列
type FeatureDeriver struct {
	dcfg *config.DataConfig
}

func NewFeatureDeriver(dcfg *config.DataConfig) *FeatureDeriver {
	return &FeatureDeriver{dcfg: dcfg}
}

// Derive 在清洗后的表上追加五个派生列
func (f *FeatureDeriver) Derive(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	ages := df.Col(ColAge).Float()
	amounts := df.Col(ColPurchaseAmount).Float()
	previous := df.Col(ColPreviousPurchases).Float()
	seasons := df.Col(ColSeason).Records()
	categories := df.Col(ColCategory).Records()
	discounts := df.Col(ColDiscountApplied).Records()
	promos := df.Col(ColPromoCodeUsed).Records()

	n := df.Nrow()
	ageGroups := make([]string, n)
	amountGroups := make([]string, n)
	discountOrPromo := make([]string, n)
	repeatCustomer := make([]bool, n)
	seasonCategory := make([]string, n)

	for i := 0; i < n; i++ {
		ageGroups[i] = bucketLabel(ages[i], f.dcfg.AgeCuts, f.dcfg.AgeLabels)
		amountGroups[i] = bucketLabel(amounts[i], f.dcfg.AmountCuts, f.dcfg.AmountLabels)

		if isYes(discounts[i]) || isYes(promos[i]) {
			discountOrPromo[i] = "Yes"
		} else {
			discountOrPromo[i] = "No"
		}

		repeatCustomer[i] = previous[i] >= f.dcfg.RepeatThreshold
		seasonCategory[i] = seasons[i] + "_" + categories[i]
	}

	df = df.Mutate(series.New(ageGroups, series.String, ColAgeGroup)).
		Mutate(series.New(amountGroups, series.String, ColPurchaseCategory)).
		Mutate(series.New(discountOrPromo, series.String, ColDiscountOrPromo)).
		Mutate(series.New(repeatCustomer, series.Bool, ColRepeatCustomer)).
		Mutate(series.New(seasonCategory, series.String, ColSeasonCategory))

	if df.Err != nil {
		return df, fmt.Errorf("派生特征列失败: %w", df.Err)
	}
	return df, nil
}

// bucketLabel 按右开边界分桶：v落在第一个 v < cuts[i] 的桶里
// cuts为[20,35,55]、labels为[Teen,Young Adult,Adult,Senior]时，30 -> Young Adult
func bucketLabel(v float64, cuts []float64, labels []string) string {
	for i, cut := range cuts {
		if v < cut {
			return labels[i]
		}
	}
	return labels[len(labels)-1]
}

func isYes(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "Yes")
}
