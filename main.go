// Command esusu tracks contribution arrears and weekly cash for a rotating
// savings association.
package main

import "github.com/theirongolddev/esusu/cmd"

func main() {
	cmd.Execute()
}
