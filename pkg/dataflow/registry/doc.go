// Package registry provides a generic, thread-safe, enumerable registry of
// values indexed by ordered keys.
//
// Dataflow uses it to keep name-to-constructor mappings explicit: node
// types in the factory and transforms in the model package. Keys cannot
// be registered twice, and Keys returns them sorted so the set of
// supported names can be listed.
//
// # Basic Usage
//
//	r := registry.New[string, Constructor]()
//	r.MustRegister("pca", NewPCA)
//	_ = r.Alias("principal_components", "pca")
//
//	ctor, err := r.Lookup("pca")
//	if err != nil {
//	    return err // not registered: ica (known: [pca principal_components])
//	}
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range iterates over a
// snapshot, so registering during iteration does not affect it.
package registry
