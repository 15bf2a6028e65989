// Marketlens fetches analytics resources through the client cache layer,
// printing the payload together with its freshness.
package main

import (
	"flag"
	"fmt"
	"os"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "configs/marketlens.yaml", "path to config file")
	exchange := flag.String("exchange", "nse", "exchange id (nse, mcx)")
	resource := flag.String("resource", "securities", "resource to fetch: securities, contract_info, single_analysis, batch_analysis, futures_data, derivatives_historical")
	symbol := flag.String("symbol", "", "symbol, for symbol-scoped resources")
	expiry := flag.String("expiry", "", "expiry date, for analysis resources")
	from := flag.String("from", "", "range start, for historical resources")
	to := flag.String("to", "", "range end, for historical resources")
	force := flag.Bool("refresh", false, "bypass the cache and refetch")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("marketlens", version)
		os.Exit(0)
	}

	if err := run(runOpts{
		configPath: *configPath,
		exchange:   *exchange,
		resource:   *resource,
		symbol:     *symbol,
		expiry:     *expiry,
		from:       *from,
		to:         *to,
		force:      *force,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
