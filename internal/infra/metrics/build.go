package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Constant 1 labeled with the running version and commit hash.",
	},
	[]string{"version", "commit"},
)

// SetBuildInfo publishes the build identity; main calls it once at startup.
func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}
