package container

import (
	"fmt"
	"reflect"
	"sync"
)

// In marks a parameter as injected. A function parameter whose struct type
// embeds In is resolved from the registry field by field instead of being
// supplied by the caller:
//
//	type userDeps struct {
//	    container.In
//	    Service   *UserService
//	    RequestID RequestID
//	}
//
//	func getUser(userID int, deps userDeps) (*User, error)
//
// Fields tagged `inject:"-"` are left at their zero value.
type In struct{}

var inType = reflect.TypeOf(In{})

// param is one parameter of an injected function.
type param struct {
	typ      reflect.Type
	injected bool
	arg      int           // index into the residual arguments
	fields   []structField // injected struct fields
}

type structField struct {
	index int // field index in the struct
	req   int // index into signature.required
}

// signature is the extractor's view of a function: which parameters the
// caller supplies, which types must be resolved, and the residual function
// type exposed to callers.
type signature struct {
	fn       reflect.Type
	residual reflect.Type
	params   []param
	required []reflect.Type
	async    bool
}

var signatures sync.Map // reflect.Type → *signature

// extract classifies the parameters of fnType. Results are memoized per
// function type since they depend on nothing else.
func extract(fnType reflect.Type) (*signature, error) {
	if s, ok := signatures.Load(fnType); ok {
		return s.(*signature), nil
	}
	s, err := buildSignature(fnType)
	if err != nil {
		return nil, err
	}
	actual, _ := signatures.LoadOrStore(fnType, s)
	return actual.(*signature), nil
}

func buildSignature(fnType reflect.Type) (*signature, error) {
	if fnType.Kind() != reflect.Func {
		return nil, fmt.Errorf("injected value must be a function, got %s", fnType)
	}
	if fnType.NumOut() == 0 || fnType.Out(fnType.NumOut()-1) != errorType {
		return nil, fmt.Errorf("injected function %s must return error as its last result", fnType)
	}

	s := &signature{fn: fnType}
	seen := make(map[reflect.Type]int)
	var residualIn []reflect.Type

	for i := 0; i < fnType.NumIn(); i++ {
		t := fnType.In(i)
		if !isInStruct(t) {
			s.params = append(s.params, param{typ: t, arg: len(residualIn)})
			residualIn = append(residualIn, t)
			continue
		}

		p := param{typ: t, injected: true}
		for j := 0; j < t.NumField(); j++ {
			f := t.Field(j)
			if f.Anonymous && f.Type == inType {
				continue
			}
			if f.Tag.Get("inject") == "-" {
				continue
			}
			if !f.IsExported() {
				return nil, fmt.Errorf("injected struct %s: field %s must be exported", t, f.Name)
			}
			req, ok := seen[f.Type]
			if !ok {
				req = len(s.required)
				seen[f.Type] = req
				s.required = append(s.required, f.Type)
			}
			p.fields = append(p.fields, structField{index: j, req: req})
		}
		s.params = append(s.params, p)
	}

	outs := make([]reflect.Type, fnType.NumOut())
	for i := range outs {
		outs[i] = fnType.Out(i)
	}
	s.residual = reflect.FuncOf(residualIn, outs, fnType.IsVariadic())
	s.async = len(residualIn) > 0 && residualIn[0] == contextType
	return s, nil
}

func isInStruct(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == inType {
			return true
		}
	}
	return false
}

// assemble merges caller arguments with resolved values into the argument
// list of the wrapped function.
func (s *signature) assemble(args, resolved []reflect.Value) []reflect.Value {
	out := make([]reflect.Value, len(s.params))
	for i, p := range s.params {
		if !p.injected {
			out[i] = args[p.arg]
			continue
		}
		v := reflect.New(p.typ).Elem()
		for _, f := range p.fields {
			v.Field(f.index).Set(resolved[f.req])
		}
		out[i] = v
	}
	return out
}

// Residual returns the function type callers see after injection: fn's
// signature minus every In struct parameter.
func Residual(fn any) (reflect.Type, error) {
	if fn == nil {
		return nil, fmt.Errorf("injected value must be a function, got nil")
	}
	s, err := extract(reflect.TypeOf(fn))
	if err != nil {
		return nil, err
	}
	return s.residual, nil
}
