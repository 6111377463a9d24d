package server

import (
	"errors"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/bundleshop/internal/datamodels/bundle"
	"github.com/example/bundleshop/internal/datamodels/inventory"
	"github.com/example/bundleshop/internal/datamodels/order"
	"github.com/example/bundleshop/internal/datamodels/product"
	"github.com/example/bundleshop/internal/pricing"
	"github.com/example/bundleshop/internal/service"
)

var (
	badRequest = []error{
		service.ErrInvalidQuantity,
		service.ErrOutOfStock,
		service.ErrQuantityExceedsStock,
		service.ErrEmptyCart,
		service.ErrInvalidCustomer,
		service.ErrInvalidPaymentMethod,
		service.ErrInvalidSlipURL,
		service.ErrInvalidProduct,
		pricing.ErrMissingOptionSelections,
		pricing.ErrUnknownOption,
		bundle.ErrInvalidShape,
		order.ErrInvalidStatus,
	}
	notFound = []error{
		bundle.ErrNotFound,
		product.ErrNotFound,
		order.ErrNotFound,
		inventory.ErrAlertNotFound,
		service.ErrLineNotFound,
	}
	conflict = []error{
		service.ErrDuplicateSubmission,
		service.ErrConcurrentUpdate,
		order.ErrInvalidTransition,
		gorm.ErrDuplicatedKey,
	}
)

func statusOf(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return iris.StatusBadRequest
		}
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			return iris.StatusNotFound
		}
	}
	for _, target := range conflict {
		if errors.Is(err, target) {
			return iris.StatusConflict
		}
	}
	return iris.StatusInternalServerError
}

// fail 按错误类型返回对应的 HTTP 状态码，500 不把内部错误暴露给调用方
func fail(ctx iris.Context, err error) {
	code := statusOf(err)
	msg := err.Error()
	if code == iris.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("method", ctx.Method()),
			zap.String("path", ctx.Path()),
			zap.Error(err))
		msg = "internal error"
	}
	ctx.StopWithJSON(code, iris.Map{"code": code, "msg": msg})
}

func badJSON(ctx iris.Context, err error) {
	ctx.StopWithJSON(iris.StatusBadRequest, iris.Map{"code": iris.StatusBadRequest, "msg": err.Error()})
}

func ok(ctx iris.Context, data interface{}) {
	ctx.JSON(iris.Map{"code": 0, "data": data})
}
