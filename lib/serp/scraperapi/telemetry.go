package scraperapi

import (
	"storescout/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("storescout.lib.serp.scraperapi")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
