package run

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/plately/plately/cmd/util"
)

// bindRunFlagsFunc binds the cobra cmd flags to the equivalent config value
// being managed by viper. This bridges the config between cobra flags and
// viper flags.
func bindRunFlagsFunc(flags *pflag.FlagSet) func(*cobra.Command, []string) {
	return func(*cobra.Command, []string) {
		util.MustBindPFlag(datastoreEngineFlag, flags.Lookup(datastoreEngineFlag))
		util.MustBindPFlag(datastoreURIFlag, flags.Lookup(datastoreURIFlag))
		util.MustBindPFlag(datastoreUsernameFlag, flags.Lookup(datastoreUsernameFlag))
		util.MustBindPFlag(datastorePasswordFlag, flags.Lookup(datastorePasswordFlag))
		util.MustBindPFlag(datastoreMetricsFlag, flags.Lookup(datastoreMetricsFlag))
		util.MustBindPFlag(datastoreMaxOpenConnsFlag, flags.Lookup(datastoreMaxOpenConnsFlag))
		util.MustBindPFlag(datastoreMaxIdleConnsFlag, flags.Lookup(datastoreMaxIdleConnsFlag))
		util.MustBindPFlag(httpAddrFlag, flags.Lookup(httpAddrFlag))
		util.MustBindPFlag(corsAllowedOriginsFlag, flags.Lookup(corsAllowedOriginsFlag))
		util.MustBindPFlag(mediaBaseURLFlag, flags.Lookup(mediaBaseURLFlag))
		util.MustBindPFlag(mediaCacheSizeFlag, flags.Lookup(mediaCacheSizeFlag))
		util.MustBindPFlag(maxConcurrentReadsFlag, flags.Lookup(maxConcurrentReadsFlag))
		util.MustBindPFlag(logFormatFlag, flags.Lookup(logFormatFlag))
		util.MustBindPFlag(logLevelFlag, flags.Lookup(logLevelFlag))
		util.MustBindPFlag(traceEnabledFlag, flags.Lookup(traceEnabledFlag))
		util.MustBindPFlag(traceOTLPEndpointFlag, flags.Lookup(traceOTLPEndpointFlag))
		util.MustBindPFlag(traceServiceNameFlag, flags.Lookup(traceServiceNameFlag))
		util.MustBindPFlag(traceSampleRatioFlag, flags.Lookup(traceSampleRatioFlag))
	}
}
