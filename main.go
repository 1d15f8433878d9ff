package main

import (
	"github.com/kozaktomas/photo-gallery/cmd"

	_ "github.com/kozaktomas/photo-gallery/internal/database/mock"
	_ "github.com/kozaktomas/photo-gallery/internal/database/postgres"
	_ "github.com/kozaktomas/photo-gallery/internal/database/sqlite"
)

func main() {
	cmd.Execute()
}
