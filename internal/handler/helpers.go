package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"cashregister/internal/apierror"
	"cashregister/internal/middleware"
	"cashregister/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// decimal.Decimal is a struct; validate it as its float value so that
	// numeric tags like min=0 and required work.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	// Report JSON field names instead of Go field names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// bindAndValidate binds the JSON body and runs validator tags. On failure it
// writes a 400 and returns false; the caller must return without writing.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, apierror.NewValidation(fields))
		return false
	}
	return true
}

// pathUUID parses a UUID path parameter, writing a 400 when malformed.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(name+" is not a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func actorID(c *gin.Context) uuid.UUID {
	return middleware.GetClaims(c).ActorID()
}

var kindStatus = map[service.Kind]int{
	service.KindValidation:       http.StatusBadRequest,
	service.KindConflict:         http.StatusConflict,
	service.KindNotFound:         http.StatusNotFound,
	service.KindInvalidState:     http.StatusConflict,
	service.KindNoOpenSession:    http.StatusConflict,
	service.KindAlreadyCancelled: http.StatusConflict,
	service.KindForbidden:        http.StatusForbidden,
}

// writeError maps service errors to their HTTP status. Anything that is not
// a service error is logged and reported as a generic 500.
func writeError(c *gin.Context, err error) {
	var se *service.Error
	if errors.As(err, &se) {
		if status, ok := kindStatus[se.Kind]; ok {
			c.JSON(status, apierror.WithCode(se.Kind.String(), se.Msg))
			return
		}
	}
	log.Error().
		Str("request_id", c.GetString(middleware.RequestIDKey)).
		Str("path", c.FullPath()).
		Err(err).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, apierror.New("internal server error"))
}
