// Package viz is the terminal live view of a cohort run, built on Bubble Tea.
//
// # Key Bindings
//
//	Space      - Pause/Resume
//	R          - Restore parameters and restart
//	Tab/→ ←    - Select parameter
//	Up/K Down/J - Tune selected parameter by 5%
//	+ -        - Simulated years per frame
//	T          - Cycle color themes
//	?          - Show help overlay
package viz
