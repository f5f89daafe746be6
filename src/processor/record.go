package processor

import (
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-playground/validator/v10"

	"ShoppingBehavior/src/config"
)

// 数据集列名常量，与dataconfig.json中的columns保持一致
const (
	ColCustomerID        = "Customer ID"
	ColAge               = "Age"
	ColGender            = "Gender"
	ColItemPurchased     = "Item Purchased"
	ColCategory          = "Category"
	ColPurchaseAmount    = "Purchase Amount (USD)"
	ColLocation          = "Location"
	ColSize              = "Size"
	ColColor             = "Color"
	ColSeason            = "Season"
	ColReviewRating      = "Review Rating"
	ColSubscription      = "Subscription Status"
	ColShippingType      = "Shipping Type"
	ColDiscountApplied   = "Discount Applied"
	ColPromoCodeUsed     = "Promo Code Used"
	ColPreviousPurchases = "Previous Purchases"
	ColPaymentMethod     = "Payment Method"
	ColFrequency         = "Frequency of Purchases"
)

// 派生列名常量，由FeatureDeriver一次性生成
const (
	ColAgeGroup         = "Age_Group"
	ColPurchaseCategory = "Purchase_Category"
	ColDiscountOrPromo  = "Discount_or_Promo"
	ColRepeatCustomer   = "Is_Repeat_Customer"
	ColSeasonCategory   = "Season_Category"
)

// DerivedColumns 派生列清单，派生列只依赖原始列，不存在派生套派生
var DerivedColumns = []string{
	ColAgeGroup,
	ColPurchaseCategory,
	ColDiscountOrPromo,
	ColRepeatCustomer,
	ColSeasonCategory,
}

// Transaction 单条购物记录的业务域约束
// 评分允许[0,5]，盖帽之后才收敛到[1,5]
type Transaction struct {
	Age               float64 `validate:"gte=0,lte=120"`
	Gender            string  `validate:"oneof=Male Female Other Unknown"`
	Season            string  `validate:"oneof=Spring Summer Fall Winter Unknown"`
	PurchaseAmount    float64 `validate:"gte=0"`
	ReviewRating      float64 `validate:"gte=0,lte=5"`
	PreviousPurchases float64 `validate:"gte=0"`
}

var validate = validator.New()

// fieldColumn 将校验失败的结构体字段映射回数据列名
var fieldColumn = map[string]string{
	"Age":               ColAge,
	"Gender":            ColGender,
	"Season":            ColSeason,
	"PurchaseAmount":    ColPurchaseAmount,
	"ReviewRating":      ColReviewRating,
	"PreviousPurchases": ColPreviousPurchases,
}

// ValidateRecords 对缺失值填充之后、盖帽之前的数据做业务域校验
// 任何一行越界都会让本次运行失败，返回的ValidationError指出行和列
func ValidateRecords(df dataframe.DataFrame, dcfg *config.DataConfig) error {
	ages := df.Col(ColAge).Float()
	genders := df.Col(ColGender).Records()
	seasons := df.Col(ColSeason).Records()
	amounts := df.Col(ColPurchaseAmount).Float()
	ratings := df.Col(ColReviewRating).Float()
	previous := df.Col(ColPreviousPurchases).Float()

	for i := 0; i < df.Nrow(); i++ {
		t := Transaction{
			Age:               ages[i],
			Gender:            genders[i],
			Season:            seasons[i],
			PurchaseAmount:    amounts[i],
			ReviewRating:      ratings[i],
			PreviousPurchases: previous[i],
		}

		if err := validate.Struct(t); err != nil {
			verrs, ok := err.(validator.ValidationErrors)
			if !ok || len(verrs) == 0 {
				return err
			}
			fe := verrs[0]
			return &ValidationError{
				Row:    i + 1,
				Column: fieldColumn[fe.StructField()],
				Value:  formatValue(fe.Value()),
				Reason: "违反约束 " + fe.Tag(),
			}
		}
	}
	return nil
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
