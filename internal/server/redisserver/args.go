package redisserver

// keyword is a named option whose value follows one of its spellings.
type keyword struct {
	name      string
	spellings []string
}

// argSpec declares how a command's elements bind to names.
type argSpec struct {
	positional []string
	keywords   []keyword
}

// commandArgs is the binding table for commands that take arguments.
var commandArgs = map[string]argSpec{
	"ECHO":   {positional: []string{"message"}},
	"GET":    {positional: []string{"key"}},
	"SET":    {positional: []string{"key", "value"}, keywords: []keyword{{name: "px", spellings: []string{"px", "PX"}}}},
	"CONFIG": {positional: []string{"action", "parameter", "value"}},
	"KEYS":   {positional: []string{"pattern"}},
}

// Args holds bound arguments. A name missing from the map is absent.
type Args map[string][]byte

// Get returns the bound value of name.
func (a Args) Get(name string) ([]byte, bool) {
	v, ok := a[name]
	return v, ok
}

// String returns the bound value of name as a string.
func (a Args) String(name string) (string, bool) {
	v, ok := a[name]
	return string(v), ok
}

// bindArgs binds params (the elements after the command name) to spec.
// Positional names bind by index. Each keyword binds to the element after
// the first of its spellings found past the positional slots; a spelling
// in the last position binds nothing.
func bindArgs(spec argSpec, params [][]byte) Args {
	args := make(Args, len(spec.positional)+len(spec.keywords))
	for i, name := range spec.positional {
		if i < len(params) {
			args[name] = params[i]
		}
	}

	rest := params[min(len(spec.positional), len(params)):]
	for _, kw := range spec.keywords {
		for i := 0; i < len(rest)-1; i++ {
			if matchesAny(rest[i], kw.spellings) {
				args[kw.name] = rest[i+1]
				break
			}
		}
	}
	return args
}

func matchesAny(b []byte, spellings []string) bool {
	for _, s := range spellings {
		if string(b) == s {
			return true
		}
	}
	return false
}
