// Package all registers every sink backend with the factory.
// Blank-import it from binaries; the config selects which one runs.
package all

import (
	_ "eventetl/internal/sink/csvfile"
	_ "eventetl/internal/sink/mssql"
	_ "eventetl/internal/sink/postgres"
	_ "eventetl/internal/sink/sqlite"
)
