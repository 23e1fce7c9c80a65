package domain

// Model is the application-defined state owned by exactly one Store.
// Concrete shapes belong to the application; the only capability required
// here is a textual summary for diagnostics.
type Model interface {
	String() string
}

// Cloner is implemented by models that know how to copy themselves.
// Read-only views prefer Clone over a reflective deep copy. A Model whose
// type reaches unexported fields must implement Cloner.
type Cloner interface {
	Clone() Model
}
