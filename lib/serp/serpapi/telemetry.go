package serpapi

import (
	"storescout/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("storescout.lib.serp.serpapi")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
