package whm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Shape Round Trips
// =============================================================================

func TestNormalize_SuccessShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		shape Shape
	}{
		{"metadata", `{"metadata":{"result":1,"reason":"Account Creation Ok"},"data":{"user":"misitio"}}`, ShapeMetadata},
		{"bare status", `{"status":1}`, ShapeStatus},
		{"result list", `{"result":[{"status":1,"statusmsg":"Account Creation Ok"}]}`, ShapeResultList},
		{"package list", `{"package":[{"name":"hostprov_basic"}]}`, ShapeList},
		{"string status", `{"status":"1","statusmsg":"ok"}`, ShapeStatus},
		{"bool metadata", `{"metadata":{"result":true}}`, ShapeMetadata},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Normalize([]byte(tt.body))
			assert.True(t, resp.Success)
			assert.Equal(t, tt.shape, resp.Shape)
			assert.Equal(t, FailureNone, resp.Failure)
		})
	}
}

func TestNormalize_FailureShapes(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		shape  Shape
		reason string
	}{
		{"metadata", `{"metadata":{"result":0,"reason":"domain already exists"}}`, ShapeMetadata, "domain already exists"},
		{"bare status", `{"status":0,"statusmsg":"bad plan"}`, ShapeStatus, "bad plan"},
		{"bare status no message", `{"status":0}`, ShapeStatus, defaultRemoteReason},
		{"result list", `{"result":[{"status":0,"statusmsg":"username taken"}]}`, ShapeResultList, "username taken"},
		{"list with error", `{"acct":[],"error":"access denied"}`, ShapeList, "access denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := Normalize([]byte(tt.body))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.shape, resp.Shape)
			assert.Equal(t, FailureRemote, resp.Failure)
			assert.Equal(t, tt.reason, resp.Reason)
		})
	}
}

func TestNormalize_EmptyResultList(t *testing.T) {
	resp := Normalize([]byte(`{"result":[]}`))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Reason)
}

func TestNormalize_MixedResultList(t *testing.T) {
	resp := Normalize([]byte(`{"result":[{"status":1},{"status":0,"statusmsg":"second failed"}]}`))
	assert.False(t, resp.Success)
	assert.Equal(t, "second failed", resp.Reason)
}

// =============================================================================
// Protocol Errors
// =============================================================================

func TestNormalize_NotJSON(t *testing.T) {
	resp := Normalize([]byte("<html>Login required</html>"))
	assert.False(t, resp.Success)
	assert.Equal(t, FailureProtocol, resp.Failure)
	assert.Equal(t, ShapeNotJSON, resp.Shape)
	assert.NotEmpty(t, resp.Reason)
}

func TestNormalize_UnknownShape(t *testing.T) {
	resp := Normalize([]byte(`{"cpanelresult":{"event":{"result":1}}}`))
	assert.False(t, resp.Success)
	assert.Equal(t, FailureProtocol, resp.Failure)
	assert.Equal(t, ShapeUnknown, resp.Shape)
	assert.Contains(t, resp.Reason, "cpanelresult")
}

func TestNormalize_NonObjectJSON(t *testing.T) {
	resp := Normalize([]byte(`[1,2,3]`))
	assert.False(t, resp.Success)
	assert.Equal(t, ShapeUnknown, resp.Shape)
}

func TestNormalize_BadStatusValueIsUnknown(t *testing.T) {
	resp := Normalize([]byte(`{"status":"maybe"}`))
	assert.False(t, resp.Success)
	assert.Equal(t, ShapeUnknown, resp.Shape)
}

func TestNormalize_EmptyBody(t *testing.T) {
	resp := Normalize(nil)
	assert.False(t, resp.Success)
	assert.Equal(t, FailureProtocol, resp.Failure)
}

// =============================================================================
// Helpers
// =============================================================================

func TestAccountSpec_Params(t *testing.T) {
	v := AccountSpec{
		Username:     "misitio",
		Domain:       "misitio.hostprov.net",
		Password:     "Hp1234&x",
		Package:      "hostprov_basic",
		ContactEmail: "ana@example.com",
	}.Params()

	assert.Equal(t, "misitio", v.Get("username"))
	assert.Equal(t, "hostprov_basic", v.Get("plan"))
	assert.Contains(t, v.Encode(), "password=Hp1234%26x")
}

func TestPackageNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, PackageNames(Normalize([]byte(`{"package":[{"name":"a"},{"name":"b"}]}`))))
	assert.Equal(t, []string{"a"}, PackageNames(Normalize([]byte(`{"metadata":{"result":1},"data":{"pkg":[{"name":"a"}]}}`))))
	assert.Nil(t, PackageNames(Normalize([]byte(`{"status":0}`))))
}
