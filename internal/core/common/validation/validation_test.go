package validation_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/frahmantamala/photobooth-payment/internal"
	"github.com/frahmantamala/photobooth-payment/internal/core/common/validation"
)

func fieldErrors(appErr *apperrors.AppError) []apperrors.ValidationError {
	details, ok := appErr.Details.(apperrors.ValidationErrors)
	ExpectWithOffset(1, ok).To(BeTrue())
	return details.Errors
}

var _ = Describe("ValidationBuilder", func() {
	It("passes valid input", func() {
		v := validation.NewValidator()
		v.Field("paymentMethod", "promptpay").Required().OneOf([]string{"promptpay", "wechat"}, apperrors.ErrCodeInvalidPaymentMethod)
		v.Field("amount", int64(500)).MinInt(100, apperrors.ErrCodeAmountTooLow).MaxInt(1000, apperrors.ErrCodeAmountTooHigh)

		Expect(v.Validate()).To(BeNil())
	})

	It("collects every failure in field order", func() {
		v := validation.NewValidator()
		v.Field("paymentMethod", "cash").Required().OneOf([]string{"promptpay", "wechat"}, apperrors.ErrCodeInvalidPaymentMethod)
		v.Field("amount", int64(50)).MinInt(100, apperrors.ErrCodeAmountTooLow)

		appErr := v.Validate()

		Expect(appErr).NotTo(BeNil())
		Expect(appErr.Message).To(Equal("Validation failed"))
		errs := fieldErrors(appErr)
		Expect(errs).To(HaveLen(2))
		Expect(errs[0].Message).To(Equal("paymentMethod must be one of: promptpay, wechat"))
		Expect(errs[0].Code).To(Equal(string(apperrors.ErrCodeInvalidPaymentMethod)))
		Expect(errs[1].Message).To(Equal("amount must be at least 100"))
		Expect(appErr.Error()).To(Equal("paymentMethod must be one of: promptpay, wechat"))
	})

	DescribeTable("single rules",
		func(build func(*validation.ValidationBuilder), message string) {
			v := validation.NewValidator()
			build(v)
			errs := fieldErrors(v.Validate())
			Expect(errs[0].Message).To(Equal(message))
		},
		Entry("blank required string", func(v *validation.ValidationBuilder) {
			v.Field("chargeId", "  ").Required()
		}, "chargeId is required"),
		Entry("nil required pointer", func(v *validation.ValidationBuilder) {
			var amount *int64
			v.Field("amount", amount).Required()
		}, "amount is required"),
		Entry("above the maximum", func(v *validation.ValidationBuilder) {
			v.Field("amount", 2000).MaxInt(1000, apperrors.ErrCodeAmountTooHigh)
		}, "amount must not exceed 1000"),
		Entry("too long", func(v *validation.ValidationBuilder) {
			v.Field("chargeId", "abcdef").MaxLength(3)
		}, "chargeId must not exceed 3 characters"),
		Entry("custom rule", func(v *validation.ValidationBuilder) {
			v.Field("status", "paid").Custom(func(value interface{}) *apperrors.AppError {
				return apperrors.NewValidationFieldError("status", "status is not final", apperrors.ErrCodeInvalidStatus)
			})
		}, "status is not final"),
	)

	It("leaves empty and nil values to Required", func() {
		var amount *int64
		v := validation.NewValidator()
		v.Field("paymentMethod", "").OneOf([]string{"promptpay"}, apperrors.ErrCodeInvalidPaymentMethod)
		v.Field("amount", amount).MinInt(0, apperrors.ErrCodeInvalidAmount)

		Expect(v.Validate()).To(BeNil())
	})
})
