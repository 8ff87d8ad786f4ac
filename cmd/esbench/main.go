// Command esbench loads and runs YCSB-style workloads against Elasticsearch,
// OpenSearch or the embedded SQLite store.
package main

import "github.com/nimburion/esbench/pkg/cli"

func main() {
	cli.Execute(cli.NewRootCommand(cli.Options{}))
}
