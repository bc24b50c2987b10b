package checkcrd

import (
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/scheme"
)

// SchemeGroupVersion is set by ConfigureScheme and used by addKnownTypes.
var SchemeGroupVersion schema.GroupVersion

// ConfigureScheme registers the Check/CheckList types against the supplied
// group/version so the shared client-go scheme knows how to decode them,
// grounded on khstatecrd's ConfigureScheme/addKnownTypes pair.
func ConfigureScheme(groupName, groupVersion string) {
	SchemeGroupVersion = schema.GroupVersion{Group: groupName, Version: groupVersion}
	schemeBuilder := runtime.NewSchemeBuilder(addKnownTypes)
	_ = schemeBuilder.AddToScheme(scheme.Scheme)
}

// knownTypesMu guards against a documented race in apimachinery when
// addKnownTypes and AddToGroupVersion run concurrently from two CRD
// registrations (e.g. tests running in parallel packages).
var knownTypesMu sync.Mutex

func addKnownTypes(s *runtime.Scheme) error {
	knownTypesMu.Lock()
	defer knownTypesMu.Unlock()

	s.AddKnownTypes(SchemeGroupVersion, &Check{}, &CheckList{})
	metav1.AddToGroupVersion(s, SchemeGroupVersion)
	return nil
}
