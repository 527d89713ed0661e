package googlecse

import (
	"storescout/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("storescout.lib.serp.googlecse")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
