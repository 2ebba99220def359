package di

import (
	"context"
	"net/http"
	"reflect"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"

	"github.com/lucerna-ai/lucerna/pkg/application"
	"github.com/lucerna-ai/lucerna/pkg/composables"
	"github.com/lucerna-ai/lucerna/pkg/intl"
)

var (
	writerType    = reflect.TypeOf((*http.ResponseWriter)(nil)).Elem()
	requestType   = reflect.TypeOf((*http.Request)(nil))
	contextType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	entryType     = reflect.TypeOf((*logrus.Entry)(nil))
	localizerType = reflect.TypeOf((*i18n.Localizer)(nil))
)

// H turns a function with typed dependencies into an http.Handler. Built-in
// parameters (ResponseWriter, *Request, context, *logrus.Entry,
// *i18n.Localizer) come from the request; anything else is resolved from the
// application service registry by type.
//
//	r.Handle("/x", di.H(func(w http.ResponseWriter, r *http.Request, svc *services.ChatService) { ... }))
func H(handler interface{}) http.Handler {
	handlerValue := reflect.ValueOf(handler)
	handlerType := handlerValue.Type()
	if handlerType.Kind() != reflect.Func {
		panic("di.H: handler must be a function")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		args := make([]reflect.Value, handlerType.NumIn())

		for i := 0; i < handlerType.NumIn(); i++ {
			paramType := handlerType.In(i)
			value, err := resolve(ctx, paramType, w, r)
			if err != nil {
				composables.UseLogger(ctx).
					WithError(err).
					WithField("param", paramType.String()).
					Error("di: failed to resolve handler parameter")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}
			args[i] = value
		}

		handlerValue.Call(args)
	})
}

func resolve(ctx context.Context, paramType reflect.Type, w http.ResponseWriter, r *http.Request) (reflect.Value, error) {
	switch paramType {
	case writerType:
		return reflect.ValueOf(w), nil
	case requestType:
		return reflect.ValueOf(r), nil
	case contextType:
		return reflect.ValueOf(ctx), nil
	case entryType:
		return reflect.ValueOf(composables.UseLogger(ctx)), nil
	case localizerType:
		localizer, err := intl.UseLocalizer(ctx)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(localizer), nil
	}

	app, err := application.UseApp(ctx)
	if err != nil {
		return reflect.Value{}, err
	}
	for serviceType, service := range app.Services() {
		if reflect.PointerTo(serviceType) == paramType || serviceType == paramType {
			return reflect.ValueOf(service), nil
		}
		if paramType.Kind() == reflect.Interface && reflect.PointerTo(serviceType).Implements(paramType) {
			return reflect.ValueOf(service), nil
		}
	}
	return reflect.Value{}, &unresolvedParamError{paramType: paramType}
}

type unresolvedParamError struct {
	paramType reflect.Type
}

func (e *unresolvedParamError) Error() string {
	return "di: no provider for parameter type " + e.paramType.String()
}
