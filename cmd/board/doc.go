// Command board is the terminal client of the family order workflow board.
//
// It talks to a running boardd over HTTP with the bearer token from the
// client section of the configuration (or BOARD_TOKEN), renders the board
// and its history as tables, and can follow the board live through the sync
// controller.
package main
