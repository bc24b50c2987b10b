package checkcrd

import (
	"context"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// GroupName and Version identify the checks CRD, matching spec.md §6's
// "crd.k8s.afrank.local/v1" group/version and "checks" plural resource.
const (
	GroupName = "crd.k8s.afrank.local"
	Version   = "v1"
	Resource  = "checks"
)

// Client is a thin typed REST client for the checks CRD, grounded on
// khstatecrd/functions.go's Create/Delete/Update/Get/List/Watch set. It backs
// the k8s-specific implementation of internal/cluster.ClusterClient.
type Client struct {
	restClient rest.Interface
}

// RestClient exposes the underlying rest.Interface for callers that need to
// build their own cache.ListWatch.
func (c *Client) RestClient() rest.Interface {
	return c.restClient
}

// NewClient builds a Client for the given group/version, preferring
// in-cluster config and falling back to the supplied kubeconfig file,
// grounded on khstatecrd/api.go's Client constructor.
func NewClient(groupName, version, kubeConfigFile string) (*Client, error) {
	c, err := rest.InClusterConfig()
	if err != nil {
		c, err = clientcmd.BuildConfigFromFlags("", kubeConfigFile)
	}
	if err != nil {
		return nil, err
	}

	ConfigureScheme(groupName, version)

	config := *c
	config.ContentConfig.GroupVersion = &schema.GroupVersion{Group: groupName, Version: version}
	config.APIPath = "/apis"
	config.NegotiatedSerializer = scheme.Codecs.WithoutConversion()
	config.UserAgent = rest.DefaultKubernetesUserAgent()

	restClient, err := rest.RESTClientFor(&config)
	if err != nil {
		return nil, err
	}
	return &Client{restClient: restClient}, nil
}

// Create creates a new Check resource.
func (c *Client) Create(ctx context.Context, check *Check, namespace string) (*Check, error) {
	result := Check{}
	err := c.restClient.
		Post().
		Namespace(namespace).
		Resource(Resource).
		Body(check).
		Do(ctx).
		Into(&result)
	return &result, err
}

// Delete deletes a Check resource by name.
func (c *Client) Delete(ctx context.Context, name, namespace string) error {
	return c.restClient.
		Delete().
		Namespace(namespace).
		Resource(Resource).
		Name(name).
		Do(ctx).
		Error()
}

// Update replaces the spec of a Check resource (the main resource body, not
// its status subresource).
func (c *Client) Update(ctx context.Context, check *Check, namespace string) (*Check, error) {
	result := Check{}
	err := c.restClient.
		Put().
		Namespace(namespace).
		Resource(Resource).
		Name(check.Name).
		Body(check).
		Do(ctx).
		Into(&result)
	return &result, err
}

// UpdateStatus replaces (PUT) the status subresource only, the write path the
// CheckRunner uses after every tick to avoid racing the spec the user edits.
func (c *Client) UpdateStatus(ctx context.Context, check *Check, namespace string) (*Check, error) {
	result := Check{}
	err := c.restClient.
		Put().
		Namespace(namespace).
		Resource(Resource).
		Name(check.Name).
		SubResource("status").
		Body(check).
		Do(ctx).
		Into(&result)
	return &result, err
}

// Get fetches a single Check resource by name.
func (c *Client) Get(ctx context.Context, opts metav1.GetOptions, name, namespace string) (*Check, error) {
	result := Check{}
	err := c.restClient.
		Get().
		Namespace(namespace).
		Resource(Resource).
		Name(name).
		VersionedParams(&opts, scheme.ParameterCodec).
		Do(ctx).
		Into(&result)
	return &result, err
}

// List lists Check resources in a namespace (empty namespace lists cluster-wide).
func (c *Client) List(ctx context.Context, opts metav1.ListOptions, namespace string) (*CheckList, error) {
	result := CheckList{}
	err := c.restClient.
		Get().
		Namespace(namespace).
		Resource(Resource).
		VersionedParams(&opts, scheme.ParameterCodec).
		Do(ctx).
		Into(&result)
	return &result, err
}

// Watch opens a watch.Interface over Check resources, honoring
// opts.TimeoutSeconds the way khstatecrd/functions.go's Watch does so the
// event watcher can bound how long a single watch stream runs before
// re-watching.
func (c *Client) Watch(ctx context.Context, opts metav1.ListOptions, namespace string) (watch.Interface, error) {
	var timeout time.Duration
	if opts.TimeoutSeconds != nil {
		timeout = time.Duration(*opts.TimeoutSeconds) * time.Second
	}
	opts.Watch = true

	return c.restClient.
		Get().
		Namespace(namespace).
		Resource(Resource).
		VersionedParams(&opts, scheme.ParameterCodec).
		Timeout(timeout).
		Watch(ctx)
}
