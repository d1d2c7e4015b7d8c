// Package config loads the host configuration.
//
// Settings start from Default, are merged with an optional YAML file and
// then overridden by PIECE_* environment variables:
//
//	core:
//	  driver: dynlib            # reference, wasm or dynlib
//	  library: ./libpiece_core.so
//	  backend_dir: ./lib
//	backends:
//	  - name: glfw
//	  - name: opengl
//	  - name: box2d
//	window: {width: 1280, height: 720, title: Piece, vsync: true}
//	loop: {tick_rate: 60, max_frames: 0}
//	log: {level: debug, format: json}
//	locator: {overwrite: reject}
//	metrics: {listen: ":9090"}
package config
