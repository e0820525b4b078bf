// Package render presents a completed run outside the CSV output: a static
// heatmap PNG through gonum/plot, an interactive HTML page through
// go-echarts and an .xlsx workbook through excelize. Cells that were
// missing in the input are highlighted in each.
package render
