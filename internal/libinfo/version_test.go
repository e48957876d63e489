/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"runtime/debug"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestExtractLibVersion(t *testing.T) {
	tests := []struct {
		name        string
		buildInfo   *debug.BuildInfo
		moduleName  string
		expectedVer string
	}{
		{
			name:        "dependency",
			buildInfo:   &debug.BuildInfo{Deps: []*debug.Module{{Path: moduleName, Version: "v1.2.3"}}},
			moduleName:  moduleName,
			expectedVer: "v1.2.3",
		},
		{
			name:        "dependency, next major version",
			buildInfo:   &debug.BuildInfo{Deps: []*debug.Module{{Path: moduleName + "/v2", Version: "v2.0.1"}}},
			moduleName:  moduleName,
			expectedVer: "v2.0.1",
		},
		{
			name: "replaced dependency",
			buildInfo: &debug.BuildInfo{Deps: []*debug.Module{{
				Path: moduleName, Version: "v1.0.0", Replace: &debug.Module{Path: "example.com/fork", Version: "v1.0.1"},
			}}},
			moduleName:  moduleName,
			expectedVer: "v1.0.1",
		},
		{
			name:        "similar module path",
			buildInfo:   &debug.BuildInfo{Deps: []*debug.Module{{Path: moduleName + "-extra", Version: "v9.9.9"}}},
			moduleName:  moduleName,
			expectedVer: "",
		},
		{
			name:        "main module",
			buildInfo:   &debug.BuildInfo{Main: debug.Module{Path: moduleName, Version: "v0.3.0"}},
			moduleName:  moduleName,
			expectedVer: "v0.3.0",
		},
		{
			name:        "main module, devel",
			buildInfo:   &debug.BuildInfo{Main: debug.Module{Path: moduleName, Version: "(devel)"}},
			moduleName:  moduleName,
			expectedVer: "",
		},
		{
			name:        "other module name",
			buildInfo:   &debug.BuildInfo{Deps: []*debug.Module{{Path: "github.com/other/module", Version: "v1.0.0"}}},
			moduleName:  "github.com/other/module",
			expectedVer: "v1.0.0",
		},
		{
			name:        "nil build info",
			moduleName:  moduleName,
			expectedVer: "",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedVer, extractLibVersion(tt.buildInfo, tt.moduleName))
		})
	}
}

func TestAddPrometheusLibVersionLabel(t *testing.T) {
	labels := prometheus.Labels{"cache": "dedup"}
	got := AddPrometheusLibVersionLabel(labels)
	require.Equal(t, prometheus.Labels{"cache": "dedup", PrometheusLibVersionLabel: GetLibVersion()}, got)
	require.Len(t, labels, 1, "original labels must not be modified")
	require.NotEmpty(t, GetLibVersion())
}
