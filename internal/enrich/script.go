package enrich

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Script runs a Lua transform(column, value) hook over table values.
// A nil or missing return blanks the value.
type Script struct {
	L  *lua.LState
	fn lua.LValue
}

// NewScript loads a Lua file defining a global transform function
func NewScript(path string) (*Script, error) {
	L := lua.NewState()
	if err := L.DoFile(path); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load value script: %w", err)
	}
	return newScript(L)
}

// NewScriptString loads Lua source defining a global transform function
func NewScriptString(code string) (*Script, error) {
	L := lua.NewState()
	if err := L.DoString(code); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load value script: %w", err)
	}
	return newScript(L)
}

func newScript(L *lua.LState) (*Script, error) {
	fn := L.GetGlobal("transform")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("value script must define a transform(column, value) function")
	}
	return &Script{L: L, fn: fn}, nil
}

// Close releases Lua resources
func (s *Script) Close() {
	s.L.Close()
}

// Transform calls the Lua hook. It satisfies ValueFunc.
func (s *Script) Transform(column, value string) (string, error) {
	err := s.L.CallByParam(lua.P{
		Fn:      s.fn,
		NRet:    1,
		Protect: true,
	}, lua.LString(column), lua.LString(value))
	if err != nil {
		return "", fmt.Errorf("transform failed: %w", err)
	}

	ret := s.L.Get(-1)
	s.L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return "", nil
	case lua.LString:
		return string(v), nil
	case lua.LNumber:
		return v.String(), nil
	case lua.LBool:
		if v {
			return "yes", nil
		}
		return "no", nil
	default:
		return "", fmt.Errorf("transform returned unsupported %s", ret.Type())
	}
}
