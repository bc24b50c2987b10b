package cluster

import (
	"k8s.io/client-go/kubernetes"
	_ "k8s.io/client-go/plugin/pkg/client/auth"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// NewKubeClientset returns a clientset for the core/batch APIs (Jobs, Pods,
// pod logs), preferring in-cluster config and falling back to
// kubeConfigFile, grounded on pkg/kubeClient/client.go's Create.
func NewKubeClientset(kubeConfigFile string) (kubernetes.Interface, error) {
	kubeconfig, err := rest.InClusterConfig()
	if err != nil {
		kubeconfig, err = clientcmd.BuildConfigFromFlags("", kubeConfigFile)
		if err != nil {
			return nil, err
		}
	}
	return kubernetes.NewForConfig(kubeconfig)
}
