package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/raycarroll/k8s-selfheal-engine/pkg/engine"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/kube"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/metrics"
	"github.com/raycarroll/k8s-selfheal-engine/pkg/models"
)

const testToken = "shhh"

func testPod(namespace, name string, owners ...metav1.OwnerReference) *corev1.Pod {
	return &corev1.Pod{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name, OwnerReferences: owners}}
}

func testReplicaSet(namespace, name string, owners ...metav1.OwnerReference) *appsv1.ReplicaSet {
	return &appsv1.ReplicaSet{ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name, OwnerReferences: owners}}
}

func testDeployment(namespace, name, memoryLimit string, replicas int32) *appsv1.Deployment {
	container := corev1.Container{Name: "app"}
	if memoryLimit != "" {
		container.Resources.Limits = corev1.ResourceList{corev1.ResourceMemory: resource.MustParse(memoryLimit)}
	}
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name, ResourceVersion: "1"},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Template: corev1.PodTemplateSpec{Spec: corev1.PodSpec{Containers: []corev1.Container{container}}},
		},
	}
}

func testServer(t *testing.T, objects ...runtime.Object) (*Server, *fake.Clientset, *metrics.Set) {
	t.Helper()

	clientset := fake.NewSimpleClientset(objects...)
	store, err := kube.NewClient(clientset)
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)

	set := metrics.NewSet()
	eng, err := engine.New(store, set, engine.Config{}, log)
	require.NoError(t, err)

	srv, err := New(Config{ListenAddr: ":0", APIToken: testToken}, eng, log)
	require.NoError(t, err)
	return srv, clientset, set
}

func doRequest(srv *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{ListenAddr: ":0"}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{ListenAddr: ":0", APIToken: "t"}, nil, nil)
	require.Error(t, err)
}

func TestRemediationRequiresToken(t *testing.T) {
	srv, clientset, set := testServer(t, testDeployment("default", "web", "", 1))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong token", "Bearer nope"},
		{"wrong scheme", "Basic " + testToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/remediations", strings.NewReader(`{"action":"scale","target":"web"}`))
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	assert.Empty(t, clientset.Actions(), "rejected requests must not reach the cluster")
	assert.Equal(t, 3.0, set.AuthFailureCount())
}

func TestRemediateScale(t *testing.T) {
	srv, clientset, _ := testServer(t, testDeployment("default", "web", "", 1))

	rec := doRequest(srv, "POST", "/api/v1/remediations", testToken, `{"action":"scale","target":"web"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeResponse(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Horizontal scaling: web scaled from 1 to 2 replicas.", body["message"])
	assert.Equal(t, "web", body["resource"])
	assert.Equal(t, "default", body["namespace"])

	deploy, err := clientset.AppsV1().Deployments("default").Get(context.Background(), "web", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), *deploy.Spec.Replicas)
}

func TestRemediateIncrementMemoryViaPodTarget(t *testing.T) {
	srv, clientset, _ := testServer(t,
		testPod("prod", "api-7f9-abc12", metav1.OwnerReference{Kind: models.ReplicaSetKind, Name: "api-7f9"}),
		testReplicaSet("prod", "api-7f9", metav1.OwnerReference{Kind: models.DeploymentKind, Name: "api"}),
		testDeployment("prod", "api", "", 3),
	)

	rec := doRequest(srv, "POST", "/api/v1/remediations", testToken,
		`{"action":"increment_memory","target":"api-7f9-abc12","namespace":"prod"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeResponse(t, rec)
	assert.Equal(t, "Vertical scaling: api memory limit increased from 256Mi to 320Mi.", body["message"])
	assert.Equal(t, "api", body["resource"])
	assert.Equal(t, "256Mi", body["previous"])
	assert.Equal(t, "320Mi", body["new"])

	deploy, err := clientset.AppsV1().Deployments("prod").Get(context.Background(), "api", metav1.GetOptions{})
	require.NoError(t, err)
	limit := deploy.Spec.Template.Spec.Containers[0].Resources.Limits[corev1.ResourceMemory]
	assert.Equal(t, "320Mi", limit.String())
}

func TestLegacyManageRoute(t *testing.T) {
	srv, _, _ := testServer(t, testDeployment("default", "web", "", 1))

	rec := doRequest(srv, "POST", "/manage", testToken, `{"action":"scale","target":"web"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "success", decodeResponse(t, rec)["status"])
}

func TestRemediateMalformedBody(t *testing.T) {
	srv, clientset, _ := testServer(t)

	rec := doRequest(srv, "POST", "/api/v1/remediations", testToken, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, clientset.Actions())
}

func TestRemediateUnknownAction(t *testing.T) {
	srv, clientset, _ := testServer(t)

	rec := doRequest(srv, "POST", "/api/v1/remediations", testToken, `{"action":"restart","target":"web"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeResponse(t, rec)["error"], "unknown action")
	assert.Empty(t, clientset.Actions())
}

func TestRemediateMissingDeployment(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(srv, "POST", "/api/v1/remediations", testToken, `{"action":"scale","target":"ghost"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeResponse(t, rec)["error"], "ghost")
}

func TestHealthzWithoutToken(t *testing.T) {
	srv, _, _ := testServer(t)

	rec := doRequest(srv, "GET", "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeResponse(t, rec)["status"])
}

func TestMetricsWithoutToken(t *testing.T) {
	srv, _, _ := testServer(t, testDeployment("default", "web", "", 1))

	rec := doRequest(srv, "POST", "/api/v1/remediations", testToken, `{"action":"scale","target":"web"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, "GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "selfheal_remediations_total")
}
