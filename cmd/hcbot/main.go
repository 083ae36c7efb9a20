// Command hcbot fetches the latest order PDFs for a batch of High Court
// cases from the eCourts case-status portal.
//
// Usage:
//
//	hcbot run --cases cases.yaml             # process a batch, write PDFs to output.dir
//	hcbot serve --addr 127.0.0.1:8480        # HTTP front end
//	hcbot history --limit 10                 # list past runs
//	hcbot case-types --bench "Original Side,Bombay" --query writ
package main

func main() {
	Execute()
}
