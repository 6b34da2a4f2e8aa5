package symbols

import (
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// DefaultRegistry returns a registry with every supported language.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterGo(r)
	RegisterPython(r)
	RegisterJavaScript(r)
	RegisterTypeScript(r)
	return r
}

func RegisterGo(r *Registry) {
	r.Register("go", &LanguageSpec{
		Language: golang.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @function
			(method_declaration name: (field_identifier) @name) @method
			(type_declaration (type_spec name: (type_identifier) @name)) @type
		`,
		Extensions: []string{"go"},
		Aliases:    []string{"golang"},
	})
}

func RegisterPython(r *Registry) {
	r.Register("python", &LanguageSpec{
		Language: python.GetLanguage(),
		Query: `
			(function_definition name: (identifier) @name) @function
			(class_definition name: (identifier) @name) @class
		`,
		Extensions: []string{"py", "pyi"},
		Aliases:    []string{"py"},
	})
}

func RegisterJavaScript(r *Registry) {
	r.Register("javascript", &LanguageSpec{
		Language: javascript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @function
			(class_declaration name: (identifier) @name) @class
			(method_definition name: (property_identifier) @name) @method
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @function
		`,
		Extensions: []string{"js", "jsx", "mjs", "cjs"},
		Aliases:    []string{"js", "jsx"},
	})
}

func RegisterTypeScript(r *Registry) {
	r.Register("typescript", &LanguageSpec{
		Language: typescript.GetLanguage(),
		Query: `
			(function_declaration name: (identifier) @name) @function
			(class_declaration name: (type_identifier) @name) @class
			(method_definition name: (property_identifier) @name) @method
			(lexical_declaration (variable_declarator name: (identifier) @name value: (arrow_function))) @function
			(interface_declaration name: (type_identifier) @name) @interface
			(type_alias_declaration name: (type_identifier) @name) @type
			(enum_declaration name: (identifier) @name) @enum
		`,
		Extensions: []string{"ts", "tsx", "mts", "cts"},
		Aliases:    []string{"ts", "tsx"},
	})
}
